package diffengine

// AspectLabel maps a 1-based line range on the new side of a diff to a
// human-readable aspect name (e.g. "data source", "error handling").
type AspectLabel struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Name      string `json:"name"`
}

// AnnotatedHunk is a hunk with its caller-assigned aspect name. Aspect is
// empty when no label covers the hunk.
type AnnotatedHunk struct {
	Hunk
	Aspect string `json:"aspect,omitempty"`
}

// Annotate assigns aspect names to hunks by line-range overlap. A hunk
// takes the first label whose range overlaps its new-side range (old-side
// for pure deletions). Labels are applied in the order supplied, so the
// caller controls precedence. The record itself is not modified.
func Annotate(rec *DiffRecord, labels []AspectLabel) []AnnotatedHunk {
	annotated := make([]AnnotatedHunk, 0, len(rec.Hunks))

	for _, h := range rec.Hunks {
		start, count := h.NewStart, h.NewCount
		if count == 0 {
			// Pure deletion: anchor on the old-side range.
			start, count = h.OldStart, h.OldCount
		}
		end := start + count - 1

		aspect := ""
		for _, l := range labels {
			if l.StartLine <= end && start <= l.EndLine {
				aspect = l.Name
				break
			}
		}
		annotated = append(annotated, AnnotatedHunk{Hunk: h, Aspect: aspect})
	}

	return annotated
}
