package model

// Field names one of the values read from a review node.
type Field string

// Fields read from every review node.
const (
	FieldAuthor  Field = "author"
	FieldRating  Field = "rating"
	FieldBody    Field = "body"
	FieldHelpful Field = "helpful"
)

// AllFields lists the fields in extraction order.
var AllFields = []Field{FieldAuthor, FieldRating, FieldBody, FieldHelpful}

// FieldMap holds the locator used to find each field inside a review node.
type FieldMap struct {
	Author  string `yaml:"author"`
	Rating  string `yaml:"rating"`
	Body    string `yaml:"body"`
	Helpful string `yaml:"helpful"`
}

// Locator returns the locator configured for the given field.
func (m FieldMap) Locator(f Field) string {
	switch f {
	case FieldAuthor:
		return m.Author
	case FieldRating:
		return m.Rating
	case FieldBody:
		return m.Body
	case FieldHelpful:
		return m.Helpful
	default:
		return ""
	}
}

// Complete reports whether every field has a locator.
func (m FieldMap) Complete() bool {
	for _, f := range AllFields {
		if m.Locator(f) == "" {
			return false
		}
	}
	return true
}

// ExtractedFields is the transient result of reading one review node.
// Missing fields keep their zero value and are absent from Found.
type ExtractedFields struct {
	Author       string
	RatingLabel  string
	Body         string
	HelpfulCount int

	// Found records which fields were located in the node.
	Found map[Field]bool

	// Err is set only when reading the node faulted. Such results are
	// discarded, never retried.
	Err error
}

// Missing returns the fields that were not located, in extraction order.
func (e ExtractedFields) Missing() []Field {
	var missing []Field
	for _, f := range AllFields {
		if !e.Found[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// Record is one accepted review. It is written exactly once to the output.
type Record struct {
	// Source is the job the record belongs to. It is not serialized; App
	// carries the human-readable title instead.
	Source Source `json:"-"`

	App      string `json:"app"`
	Username string `json:"username"`
	// Rating is 1..5, or 0 when the rating is unknown.
	Rating int    `json:"rating"`
	Review string `json:"review"`
}
