package bridge

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// uiNode mirrors one <node> element of a UiAutomator hierarchy dump.
type uiNode struct {
	Class      string   `xml:"class,attr"`
	Text       string   `xml:"text,attr"`
	Desc       string   `xml:"content-desc,attr"`
	ResourceID string   `xml:"resource-id,attr"`
	Bounds     string   `xml:"bounds,attr"`
	Clickable  string   `xml:"clickable,attr"`
	Children   []uiNode `xml:"node"`
}

type uiHierarchy struct {
	XMLName xml.Name `xml:"hierarchy"`
	Nodes   []uiNode `xml:"node"`
}

// FormatTree renders a UiAutomator XML dump as an indented, readable
// hierarchy. Each line carries the element class plus whichever of
// label, value, identifier, frame, and clickable are present.
func FormatTree(xmlText string) (string, error) {
	var h uiHierarchy
	if err := xml.Unmarshal([]byte(xmlText), &h); err != nil {
		return "", fmt.Errorf("failed to parse UI hierarchy XML: %w", err)
	}

	lines := []string{"Hierarchy"}
	for _, n := range h.Nodes {
		walkNode(n, 0, &lines)
	}
	return strings.Join(lines, "\n"), nil
}

func walkNode(n uiNode, depth int, lines *[]string) {
	class := n.Class
	if i := strings.LastIndex(class, "."); i >= 0 {
		class = class[i+1:]
	}
	if class == "" {
		class = "Node"
	}

	text := strings.TrimSpace(n.Text)
	desc := strings.TrimSpace(n.Desc)
	label := text
	if label == "" {
		label = desc
	}

	parts := []string{class}
	if label != "" {
		parts = append(parts, "label: "+quoteJSON(label))
	}
	if desc != "" && desc != label {
		parts = append(parts, "value: "+quoteJSON(desc))
	}
	if id := strings.TrimSpace(n.ResourceID); id != "" {
		parts = append(parts, "identifier: "+quoteJSON(id))
	}
	if rect, ok := boundsToRect(n.Bounds); ok {
		parts = append(parts, "frame: "+rect.String())
	}
	if strings.TrimSpace(n.Clickable) == "true" {
		parts = append(parts, "clickable: true")
	}

	*lines = append(*lines, strings.Repeat("  ", depth)+strings.Join(parts, ", "))

	for _, child := range n.Children {
		walkNode(child, depth+1, lines)
	}
}

func quoteJSON(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `"` + s + `"`
	}
	return string(data)
}

// extractXML trims any noise adb prepends before the XML declaration
// and verifies a hierarchy is present.
func extractXML(raw string) (string, error) {
	if i := strings.Index(raw, "<?xml"); i >= 0 {
		raw = raw[i:]
	}
	if !strings.Contains(raw, "<hierarchy") {
		return "", fmt.Errorf("uiautomator dump did not return XML hierarchy")
	}
	return strings.TrimSpace(raw), nil
}
