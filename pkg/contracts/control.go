package contracts

// FrameworkMapping cross-references a control into a framework.
type FrameworkMapping struct {
	Framework    string `json:"framework"`
	ControlID    string `json:"controlId"`
	ControlCode  string `json:"controlCode,omitempty"`
	Relationship string `json:"relationship,omitempty"` // e.g. "equivalent", "partial", "related"
}

// Control is an atomic testable requirement from the control library.
type Control struct {
	ID       string             `json:"id"`
	Category string             `json:"category"`
	Title    string             `json:"title,omitempty"`
	Mappings []FrameworkMapping `json:"mappings"`
}

// Framework names a control framework (ISO 27001, NIST CSF, ...).
type Framework struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ControlLibraryFile is the static control library envelope.
type ControlLibraryFile struct {
	Frameworks []Framework `json:"frameworks,omitempty"`
	Controls   []Control   `json:"controls"`
}
