package artifact

// Context carries a single artifact through scanning and record creation: the
// on-disk evidence (POM, artifact file, metadata), the info being populated,
// and any non-fatal errors encountered along the way.
type Context struct {
	// Pom is the path to the sibling POM file, empty when absent.
	Pom string
	// File is the path to the artifact file itself, empty when absent.
	File string
	// Metadata is the path to the repository metadata file, empty when absent.
	Metadata string

	// Info is populated by the index creators. Never nil.
	Info *Info

	// Gav is the parsed coordinate.
	Gav Coordinate

	errors []error
}

// NewContext builds a Context for the coordinate. The info is seeded from the
// coordinate; creators enrich it during populate.
func NewContext(pom, file, metadata string, gav Coordinate) *Context {
	return &Context{
		Pom:      pom,
		File:     file,
		Metadata: metadata,
		Info:     NewInfo(gav),
		Gav:      gav,
	}
}

// AddError records a non-fatal per-artifact error. Errors never abort a scan;
// they are surfaced through the scanning listener.
func (c *Context) AddError(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// Errors returns the accumulated per-artifact errors.
func (c *Context) Errors() []error {
	return c.errors
}
