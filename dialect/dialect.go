// Package dialect describes the syntax surface and capabilities of target SQL
// engines. A Dialect is plain data; compilation consults it, it never
// compiles anything itself.
package dialect

// LimitStyle selects how a row limit with an offset is written.
type LimitStyle int

const (
	// LimitOffset is `LIMIT n OFFSET m`.
	LimitOffset LimitStyle = iota
	// LimitComma is `LIMIT m, n`.
	LimitComma
	// OffsetFetch is `OFFSET m ROWS FETCH NEXT n ROWS ONLY`.
	OffsetFetch
)

// Capabilities lists what the engine supports natively. Anything absent here
// is either decomposed into supported constructs or rejected at compile time.
type Capabilities struct {
	RightJoin     bool
	FullOuterJoin bool
	// NativeSemiAnti is the `SEMI JOIN` / `ANTI JOIN` syntax.
	NativeSemiAnti  bool
	NativeIntersect bool
	NativeExcept    bool
	WindowFunctions bool
	FrameRange      bool
	FrameGroups     bool
}

// Dialect is one target engine's descriptor. Values are safe to copy and
// share; compilation never mutates them.
type Dialect struct {
	Name       string
	QuoteChar  rune
	LimitStyle LimitStyle
	// ExplicitDistinctSetOps requires `UNION DISTINCT` instead of bare
	// `UNION`.
	ExplicitDistinctSetOps bool
	// OffsetRequiresLimit marks engines that reject `OFFSET m` without a
	// preceding LIMIT clause.
	OffsetRequiresLimit bool
	// NullSafeEqPattern is a two-verb format string for null-safe equality.
	// Empty means `%s IS NOT DISTINCT FROM %s`.
	NullSafeEqPattern string
	TrueLiteral       string
	FalseLiteral      string
	// Functions overrides the rendered name of a function, keyed by the
	// canonical name.
	Functions map[string]string

	Capabilities Capabilities
}

// FunctionName maps a canonical function name to the engine's spelling.
func (d *Dialect) FunctionName(name string) string {
	if override, ok := d.Functions[name]; ok {
		return override
	}
	return name
}

func Postgres() *Dialect {
	return &Dialect{
		Name:         "postgres",
		QuoteChar:    '"',
		LimitStyle:   LimitOffset,
		TrueLiteral:  "TRUE",
		FalseLiteral: "FALSE",
		Functions: map[string]string{
			"log10": "log",
		},
		Capabilities: Capabilities{
			RightJoin:       true,
			FullOuterJoin:   true,
			NativeIntersect: true,
			NativeExcept:    true,
			WindowFunctions: true,
			FrameRange:      true,
			FrameGroups:     true,
		},
	}
}

func DuckDB() *Dialect {
	return &Dialect{
		Name:         "duckdb",
		QuoteChar:    '"',
		LimitStyle:   LimitOffset,
		TrueLiteral:  "TRUE",
		FalseLiteral: "FALSE",
		Functions: map[string]string{
			"log10": "log",
		},
		Capabilities: Capabilities{
			RightJoin:       true,
			FullOuterJoin:   true,
			NativeSemiAnti:  true,
			NativeIntersect: true,
			NativeExcept:    true,
			WindowFunctions: true,
			FrameRange:      true,
			FrameGroups:     true,
		},
	}
}

func SQLite() *Dialect {
	return &Dialect{
		Name:                "sqlite",
		QuoteChar:           '"',
		LimitStyle:          LimitOffset,
		OffsetRequiresLimit: true,
		TrueLiteral:         "1",
		FalseLiteral:        "0",
		Functions: map[string]string{
			"ceil":  "ceiling",
			"lower": "lower",
		},
		Capabilities: Capabilities{
			NativeIntersect: true,
			NativeExcept:    true,
			WindowFunctions: true,
			FrameRange:      true,
			FrameGroups:     true,
		},
	}
}

func MySQL() *Dialect {
	return &Dialect{
		Name:              "mysql",
		QuoteChar:         '`',
		LimitStyle:        LimitComma,
		NullSafeEqPattern: "%s <=> %s",
		TrueLiteral:       "TRUE",
		FalseLiteral:      "FALSE",
		Functions: map[string]string{
			"ceil":  "ceiling",
			"log10": "log10",
		},
		Capabilities: Capabilities{
			RightJoin:       true,
			WindowFunctions: true,
			FrameRange:      true,
		},
	}
}

func BigQuery() *Dialect {
	return &Dialect{
		Name:                   "bigquery",
		QuoteChar:              '`',
		LimitStyle:             LimitOffset,
		ExplicitDistinctSetOps: true,
		TrueLiteral:            "TRUE",
		FalseLiteral:           "FALSE",
		Functions: map[string]string{
			"log10": "log10",
		},
		Capabilities: Capabilities{
			RightJoin:       true,
			FullOuterJoin:   true,
			NativeIntersect: true,
			NativeExcept:    true,
			WindowFunctions: true,
			FrameRange:      true,
		},
	}
}

func ClickHouse() *Dialect {
	return &Dialect{
		Name:         "clickhouse",
		QuoteChar:    '`',
		LimitStyle:   LimitOffset,
		TrueLiteral:  "1",
		FalseLiteral: "0",
		Functions: map[string]string{
			"ln":    "log",
			"log10": "log10",
		},
		Capabilities: Capabilities{
			RightJoin:       true,
			FullOuterJoin:   true,
			NativeIntersect: true,
			NativeExcept:    true,
			WindowFunctions: true,
			FrameRange:      true,
		},
	}
}
