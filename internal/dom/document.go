// Package dom is a headless document model for instrumenting forms: it
// parses HTML, exposes forms with submit listeners and FormData-style field
// extraction, and reports structural changes to subscribers the way a
// MutationObserver on document.body with subtree: true would.
package dom

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoBody = errors.New("document has no body")

type ReadyState string

const (
	Loading  ReadyState = "loading"
	Complete ReadyState = "complete"
)

// Mutation records nodes added under Target.
type Mutation struct {
	Target *html.Node
	Added  []*html.Node
}

type Document struct {
	mu             sync.Mutex
	root           *html.Node
	readyState     ReadyState
	readyListeners []func()
	forms          map[*html.Node]*Form
	observers      map[*observer]struct{}
	submissions    []Submission
}

type Option func(*Document)

// WithLoading leaves the document in the Loading state until FinishLoading
// is called, as a page whose scripts run before parsing completes.
func WithLoading() Option {
	return func(d *Document) {
		d.readyState = Loading
	}
}

func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	d := &Document{
		root:       root,
		readyState: Complete,
		forms:      make(map[*html.Node]*Form),
		observers:  make(map[*observer]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

func (d *Document) ReadyState() ReadyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readyState
}

func (d *Document) Loading() bool {
	return d.ReadyState() == Loading
}

// OnContentLoaded registers fn to run when FinishLoading is called and
// reports true. If loading already finished nothing is registered and it
// reports false.
func (d *Document) OnContentLoaded(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readyState != Loading {
		return false
	}
	d.readyListeners = append(d.readyListeners, fn)
	return true
}

// FinishLoading marks parsing complete and runs the content-loaded listeners.
func (d *Document) FinishLoading() {
	d.mu.Lock()
	if d.readyState == Complete {
		d.mu.Unlock()
		return
	}
	d.readyState = Complete
	listeners := d.readyListeners
	d.readyListeners = nil
	d.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (d *Document) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Selection
}

func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.body()
}

func (d *Document) body() *html.Node {
	nodes := d.selection().Find("body").Nodes
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Forms returns every form in document order.
func (d *Document) Forms() []*Form {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.formsFor(d.selection().Find("form").Nodes)
}

// FormsIn returns the forms at or below node.
func (d *Document) FormsIn(node *html.Node) []*Form {
	if node == nil || node.Type != html.ElementNode {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var nodes []*html.Node
	if node.DataAtom == atom.Form {
		nodes = append(nodes, node)
	}
	nodes = append(nodes, goquery.NewDocumentFromNode(node).Find("form").Nodes...)
	return d.formsFor(nodes)
}

func (d *Document) formsFor(nodes []*html.Node) []*Form {
	forms := make([]*Form, 0, len(nodes))
	for _, n := range nodes {
		f, ok := d.forms[n]
		if !ok {
			f = &Form{doc: d, node: n}
			d.forms[n] = f
		}
		forms = append(forms, f)
	}
	return forms
}

// AppendHTML parses fragment in body context, appends the resulting nodes
// to body and notifies observers.
func (d *Document) AppendHTML(fragment string) ([]*html.Node, error) {
	body := d.Body()
	if body == nil {
		return nil, ErrNoBody
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, err
	}
	d.appendChildren(body, nodes)
	return nodes, nil
}

func (d *Document) appendChildren(parent *html.Node, children []*html.Node) {
	d.mu.Lock()
	for _, c := range children {
		parent.AppendChild(c)
	}
	d.mu.Unlock()

	d.notify(Mutation{Target: parent, Added: children})
}

// Render serializes the current tree.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Observe subscribes to structural changes. Mutations are delivered in order
// and never dropped; the channel closes when ctx is done.
func (d *Document) Observe(ctx context.Context) <-chan Mutation {
	o := &observer{
		wake: make(chan struct{}, 1),
		out:  make(chan Mutation),
	}

	d.mu.Lock()
	d.observers[o] = struct{}{}
	d.mu.Unlock()

	go func() {
		o.run(ctx)
		d.mu.Lock()
		delete(d.observers, o)
		d.mu.Unlock()
		close(o.out)
	}()
	return o.out
}

func (d *Document) notify(m Mutation) {
	d.mu.Lock()
	observers := make([]*observer, 0, len(d.observers))
	for o := range d.observers {
		observers = append(observers, o)
	}
	d.mu.Unlock()

	for _, o := range observers {
		o.push(m)
	}
}

// Submissions returns the native submissions that went through, in order.
func (d *Document) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Submission, len(d.submissions))
	copy(out, d.submissions)
	return out
}

// observer queues mutations so notify never blocks on a slow reader.
type observer struct {
	mu      sync.Mutex
	pending []Mutation
	wake    chan struct{}
	out     chan Mutation
}

func (o *observer) push(m Mutation) {
	o.mu.Lock()
	o.pending = append(o.pending, m)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *observer) run(ctx context.Context) {
	for {
		o.mu.Lock()
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()

		for _, m := range batch {
			select {
			case o.out <- m:
			case <-ctx.Done():
				return
			}
		}

		if len(batch) > 0 {
			continue
		}
		select {
		case <-o.wake:
		case <-ctx.Done():
			return
		}
	}
}
