package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vincentbai/getracker/internal/formmap"
)

// File is the value a file input contributes to the submitted field set.
type File struct {
	Name string `json:"name"`
}

// Submission is one native form submission.
type Submission struct {
	Form   *Form
	Fields []formmap.Field
}

// Form is a form element together with its submit listeners. A Document
// returns the same *Form for the same element every time.
type Form struct {
	doc       *Document
	node      *html.Node
	listeners []func(*Form)
}

func (f *Form) Attr(name string) (string, bool) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return attr(f.node, name)
}

func (f *Form) HasAttr(name string) bool {
	_, ok := f.Attr(name)
	return ok
}

func (f *Form) SetAttr(name, value string) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	setAttr(f.node, name, value)
}

// ID returns the id attribute, or "" when unset.
func (f *Form) ID() string {
	id, _ := f.Attr("id")
	return id
}

// AddSubmitListener registers fn to run on every submission, before the
// native submission is recorded.
func (f *Form) AddSubmitListener(fn func(*Form)) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Submit dispatches the submit event to the listeners and then performs the
// native submission. Listeners cannot cancel it. It returns the submitted
// fields.
func (f *Form) Submit() []formmap.Field {
	f.doc.mu.Lock()
	listeners := make([]func(*Form), len(f.listeners))
	copy(listeners, f.listeners)
	f.doc.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}

	fields := f.Fields()
	f.doc.mu.Lock()
	f.doc.submissions = append(f.doc.submissions, Submission{Form: f, Fields: fields})
	f.doc.mu.Unlock()
	return fields
}

// Fields returns the form's data set with FormData semantics: named,
// enabled controls in tree order, including controls outside the form that
// name it through a form attribute.
func (f *Form) Fields() []formmap.Field {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	var fields []formmap.Field
	for _, control := range f.doc.selection().Find("input, select, textarea").Nodes {
		if f.doc.ownerForm(control) != f.node {
			continue
		}
		name, ok := attr(control, "name")
		if !ok || name == "" || disabled(control) {
			continue
		}
		for _, value := range controlValues(control) {
			fields = append(fields, formmap.Field{Name: name, Value: value})
		}
	}
	return fields
}

// SetValue changes the value of the first control named name, as a user
// typing or choosing an option would.
func (f *Form) SetValue(name, value string) error {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	for _, control := range f.doc.selection().Find("input, select, textarea").Nodes {
		if f.doc.ownerForm(control) != f.node {
			continue
		}
		if n, _ := attr(control, "name"); n != name {
			continue
		}
		switch control.DataAtom {
		case atom.Textarea:
			setText(control, value)
		case atom.Select:
			selectOption(control, value)
		default:
			switch inputType(control) {
			case "checkbox", "radio":
				if v, ok := attr(control, "value"); (ok && v == value) || (!ok && value == "on") {
					setAttr(control, "checked", "")
				} else {
					removeAttr(control, "checked")
				}
			default:
				setAttr(control, "value", value)
			}
		}
		return nil
	}
	return fmt.Errorf("no control named %q", name)
}

// ownerForm resolves the form a control is associated with. Callers hold
// d.mu.
func (d *Document) ownerForm(control *html.Node) *html.Node {
	if formID, ok := attr(control, "form"); ok {
		for _, n := range d.selection().Find("form").Nodes {
			if id, _ := attr(n, "id"); id == formID {
				return n
			}
		}
		return nil
	}
	for p := control.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			return p
		}
	}
	return nil
}

func controlValues(control *html.Node) []any {
	switch control.DataAtom {
	case atom.Textarea:
		return []any{goquery.NewDocumentFromNode(control).Text()}
	case atom.Select:
		return selectValues(control)
	}

	switch inputType(control) {
	case "submit", "button", "reset", "image":
		return nil
	case "checkbox", "radio":
		if _, checked := attr(control, "checked"); !checked {
			return nil
		}
		if v, ok := attr(control, "value"); ok {
			return []any{v}
		}
		return []any{"on"}
	case "file":
		return []any{File{}}
	}
	v, _ := attr(control, "value")
	return []any{v}
}

func selectValues(control *html.Node) []any {
	options := goquery.NewDocumentFromNode(control).Find("option")
	_, multiple := attr(control, "multiple")

	var values []any
	options.Each(func(_ int, s *goquery.Selection) {
		if _, selected := s.Attr("selected"); selected {
			values = append(values, optionValue(s))
		}
	})
	if len(values) == 0 && !multiple && options.Length() > 0 {
		values = append(values, optionValue(options.First()))
	}
	if !multiple && len(values) > 1 {
		values = values[len(values)-1:]
	}
	return values
}

func optionValue(s *goquery.Selection) string {
	if v, ok := s.Attr("value"); ok {
		return v
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

func selectOption(control *html.Node, value string) {
	goquery.NewDocumentFromNode(control).Find("option").Each(func(_ int, s *goquery.Selection) {
		if optionValue(s) == value {
			setAttr(s.Nodes[0], "selected", "")
		} else {
			removeAttr(s.Nodes[0], "selected")
		}
	})
}

func inputType(n *html.Node) string {
	t, _ := attr(n, "type")
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "text"
	}
	return t
}

func disabled(n *html.Node) bool {
	if _, ok := attr(n, "disabled"); ok {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Fieldset {
			if _, ok := attr(p, "disabled"); ok {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
