package vectordb

// FilterExpr is a tagged boolean filter over payload fields, mirroring
// the must/should/must_not grammar of a Qdrant-style server-side
// filter. A reference store without native server-side filtering
// evaluates it client-side against each candidate's Payload.
type FilterExpr struct {
	Must    []Clause
	Should  []Clause
	MustNot []Clause
}

// Clause is a single leaf condition: either an exact-match clause or a
// numeric/time range clause. Exactly one of Match or Range is set.
type Clause struct {
	Field string
	Match *MatchClause
	Range *RangeClause
}

// MatchClause tests Field against a single value or, when Any is set,
// whether Field's value is one of several alternatives (used for
// file_extension membership tests).
type MatchClause struct {
	Value interface{}
	Any   []interface{}
}

// RangeClause bounds Field between Gte and Lte (either may be nil for
// an open-ended bound). Values are float64 (UNIX seconds for dates).
type RangeClause struct {
	Gte *float64
	Lte *float64
}

// MatchField builds a must-type equality clause.
func MatchField(field string, value interface{}) Clause {
	return Clause{Field: field, Match: &MatchClause{Value: value}}
}

// MatchAny builds a must-type "value is one of" clause.
func MatchAny(field string, values []interface{}) Clause {
	return Clause{Field: field, Match: &MatchClause{Any: values}}
}

// RangeField builds a must-type numeric range clause.
func RangeField(field string, gte, lte *float64) Clause {
	return Clause{Field: field, Range: &RangeClause{Gte: gte, Lte: lte}}
}

// Matches evaluates the filter against a flattened field map produced
// by FlattenPayload.
func (f *FilterExpr) Matches(fields map[string]interface{}) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !c.matches(fields) {
			return false
		}
	}
	for _, c := range f.MustNot {
		if c.matches(fields) {
			return false
		}
	}
	if len(f.Should) > 0 {
		anyMatched := false
		for _, c := range f.Should {
			if c.matches(fields) {
				anyMatched = true
				break
			}
		}
		if !anyMatched {
			return false
		}
	}
	return true
}

func (c Clause) matches(fields map[string]interface{}) bool {
	val, ok := fields[c.Field]
	if !ok {
		return false
	}
	if list, isList := val.([]interface{}); isList {
		if c.Match == nil {
			return false
		}
		wanted := c.Match.Any
		if len(wanted) == 0 {
			wanted = []interface{}{c.Match.Value}
		}
		for _, elem := range list {
			for _, w := range wanted {
				if equalValue(elem, w) {
					return true
				}
			}
		}
		return false
	}
	if c.Match != nil {
		if len(c.Match.Any) > 0 {
			for _, alt := range c.Match.Any {
				if equalValue(val, alt) {
					return true
				}
			}
			return false
		}
		return equalValue(val, c.Match.Value)
	}
	if c.Range != nil {
		num, ok := toFloat(val)
		if !ok {
			return false
		}
		if c.Range.Gte != nil && num < *c.Range.Gte {
			return false
		}
		if c.Range.Lte != nil && num > *c.Range.Lte {
			return false
		}
		return true
	}
	return false
}

func equalValue(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// FlattenPayload projects a Payload into the flat field map FilterExpr
// evaluates against, using the same nested key names the query engine
// assembles filters with (git.dominant_author, git.age_days, etc.).
func FlattenPayload(p Payload) map[string]interface{} {
	fields := map[string]interface{}{
		"relative_path":    p.RelativePath,
		"chunk_type":       string(p.ChunkType),
		"language":         p.Language,
		"file_extension":   p.FileExtension,
		"symbol":           p.Symbol,
		"is_documentation": p.IsDocumentation,
		"content_hash":     p.ContentHash,
	}
	if p.Git != nil {
		fields["git.dominant_author"] = p.Git.DominantAuthor
		fields["git.last_modified_at"] = float64(p.Git.LastModifiedAt.Unix())
		fields["git.age_days"] = float64(p.Git.AgeDays)
		fields["git.commit_count"] = float64(p.Git.CommitCount)
		taskIDs := make([]interface{}, len(p.Git.TaskIDs))
		for i, id := range p.Git.TaskIDs {
			taskIDs[i] = id
		}
		fields["git.task_ids"] = taskIDs
	}
	return fields
}
