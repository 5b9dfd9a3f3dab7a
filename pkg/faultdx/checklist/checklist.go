// Package checklist reads symptom selections from a saved HTML form.
//
// A checklist is any HTML document with checkbox inputs. A checked box
// contributes its symptom identifier, taken from the value attribute when
// the box is named "symptom" (or "symptoms"), and from the name otherwise:
//
//	<input type="checkbox" name="symptom" value="no_fan" checked>
//	<input type="checkbox" name="no_led" checked>
package checklist

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Item is one checkbox of a checklist
type Item struct {
	Symptom string
	Label   string
	Checked bool
}

// Parse returns every checkbox in document order
func Parse(r io.Reader) ([]Item, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string)
	collectLabels(doc, labels)

	var items []Item
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" && strings.EqualFold(attr(n, "type"), "checkbox") {
			if id := symptomOf(n); id != "" {
				_, checked := lookupAttr(n, "checked")
				label := labels[attr(n, "id")]
				if label == "" {
					label = enclosingLabel(n)
				}
				items = append(items, Item{Symptom: id, Label: label, Checked: checked})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return items, nil
}

// Checked returns the identifiers of checked boxes in document order,
// without duplicates
func Checked(r io.Reader) ([]string, error) {
	items, err := Parse(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		if it.Checked && !seen[it.Symptom] {
			seen[it.Symptom] = true
			out = append(out, it.Symptom)
		}
	}
	return out, nil
}

func symptomOf(n *html.Node) string {
	name := strings.TrimSpace(attr(n, "name"))
	switch strings.ToLower(name) {
	case "symptom", "symptoms", "symptom[]", "symptoms[]":
		return strings.TrimSpace(attr(n, "value"))
	}
	return name
}

// collectLabels maps input ids to the text of <label for="..."> elements
func collectLabels(n *html.Node, labels map[string]string) {
	if n.Type == html.ElementNode && n.Data == "label" {
		if target := attr(n, "for"); target != "" {
			labels[target] = textOf(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLabels(c, labels)
	}
}

func enclosingLabel(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "label" {
			return textOf(p)
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
