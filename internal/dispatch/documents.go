package dispatch

import "sync"

// DocumentKind identifies one of the session's virtual documents.
type DocumentKind int

const (
	DocPlan DocumentKind = iota
	DocSpecification
)

// Logical filenames the model uses to address the virtual documents.
const (
	PlanFile          = "plan.md"
	SpecificationFile = "specification.md"
)

// String returns the document's logical filename.
func (k DocumentKind) String() string {
	switch k {
	case DocPlan:
		return PlanFile
	case DocSpecification:
		return SpecificationFile
	}
	return "unknown"
}

// Documents holds the session's virtual plan and specification texts.
// Concurrent tool calls within a turn may read and write them, so all
// access goes through the mutex.
type Documents struct {
	mu            sync.Mutex
	plan          string
	specification string
}

// NewDocuments creates an empty document set.
func NewDocuments() *Documents {
	return &Documents{}
}

// Plan returns the current plan text.
func (d *Documents) Plan() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plan
}

// Specification returns the current specification text.
func (d *Documents) Specification() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.specification
}

// SetPlan replaces the plan text.
func (d *Documents) SetPlan(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plan = text
}

// SetSpecification replaces the specification text.
func (d *Documents) SetSpecification(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specification = text
}

// Get returns the text of the given document.
func (d *Documents) Get(kind DocumentKind) string {
	if kind == DocPlan {
		return d.Plan()
	}
	return d.Specification()
}

// Set replaces the text of the given document.
func (d *Documents) Set(kind DocumentKind, text string) {
	if kind == DocPlan {
		d.SetPlan(text)
		return
	}
	d.SetSpecification(text)
}
