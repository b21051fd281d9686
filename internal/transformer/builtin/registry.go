package builtin

import (
	"fmt"

	"himalaya/internal/config"
	"himalaya/internal/transformer"
)

// Kinds lists the transform kinds FromConfig understands.
var Kinds = []string{"normalize", "coerce", "select", "reorder", "rename", "nonempty", "topn", "sort", "dedup", "require"}

// FromConfig constructs the transformer chain described by ts. Left joins
// need a second table and are wired by the dataset builder, not by config.
func FromConfig(ts []config.Transform) (transformer.Chain, error) {
	c := transformer.Chain{}
	for i, t := range ts {
		switch t.Kind {
		case "normalize":
			c = append(c, Normalize{})
		case "coerce":
			c = append(c, Coerce{
				Types:  t.Options.StringMap("types"),
				Layout: t.Options.String("layout", DefaultDateLayout),
			})
		case "select":
			c = append(c, Select{Columns: t.Options.StringSlice("columns")})
		case "reorder":
			c = append(c, Reorder{Columns: t.Options.StringSlice("columns")})
		case "rename":
			c = append(c, Rename{Names: t.Options.StringMap("names")})
		case "nonempty":
			src := t.Options.String("source", "")
			if src == "" {
				return nil, fmt.Errorf("transform[%d] nonempty: source is required", i)
			}
			c = append(c, NonEmpty{Source: src, Target: t.Options.String("target", "")})
		case "topn":
			key := t.Options.String("key", "")
			if key == "" {
				return nil, fmt.Errorf("transform[%d] topn: key is required", i)
			}
			c = append(c, TopN{Key: key, N: t.Options.Int("n", 10)})
		case "sort":
			c = append(c, SortBy{
				Column: t.Options.String("column", ""),
				Desc:   t.Options.Bool("desc", false),
			})
		case "dedup":
			keys := t.Options.StringSlice("keys")
			if len(keys) == 0 {
				return nil, fmt.Errorf("transform[%d] dedup: keys are required", i)
			}
			c = append(c, DeDup{Keys: keys, Policy: t.Options.String("policy", KeepLast)})
		case "require":
			c = append(c, Require{Columns: t.Options.StringSlice("columns")})
		default:
			return nil, fmt.Errorf("unsupported transform.kind=%s", t.Kind)
		}
	}
	return c, nil
}
