package main

import (
	"fmt"
	"strings"
)

// KeySpec names the columns of a key or index. No columns means the key is
// absent, one column is a single-column key, more is a composite key.
type KeySpec struct {
	Columns []string
}

func single(col string) KeySpec { return KeySpec{Columns: []string{col}} }

func composite(cols ...string) KeySpec { return KeySpec{Columns: cols} }

func (k KeySpec) IsNone() bool { return len(k.Columns) == 0 }

func (k KeySpec) IsComposite() bool { return len(k.Columns) > 1 }

func (k KeySpec) String() string { return strings.Join(k.Columns, ", ") }

func (k KeySpec) indexSuffix() string { return strings.Join(k.Columns, "_") }

func uniqueKeys(specs ...KeySpec) []KeySpec { return specs }

func columnKeys(cols ...string) []KeySpec {
	out := make([]KeySpec, len(cols))
	for i, c := range cols {
		out[i] = single(c)
	}
	return out
}

// RefKind distinguishes plain column references from references into a
// discriminator-selected subset of another table.
type RefKind int

const (
	RefColumn RefKind = iota
	RefFiltered
)

// FilterTerm is one fixed-value predicate of a filtered reference. A term
// with Any set matches the referencing value itself rather than a constant.
type FilterTerm struct {
	Column string
	Value  string
	Any    bool
}

// ForeignKeyRef is the target of a foreign key, addressed by legacy table code.
type ForeignKeyRef struct {
	Kind   RefKind
	Table  string
	Column string
	Filter []FilterTerm
}

func refColumn(table, column string) ForeignKeyRef {
	return ForeignKeyRef{Kind: RefColumn, Table: table, Column: column}
}

func refFiltered(table string, terms ...FilterTerm) ForeignKeyRef {
	return ForeignKeyRef{Kind: RefFiltered, Table: table, Filter: terms}
}

func eq(column, value string) FilterTerm { return FilterTerm{Column: column, Value: value} }

func anyValue(column string) FilterTerm { return FilterTerm{Column: column, Any: true} }

func (r ForeignKeyRef) String() string {
	if r.Kind == RefColumn {
		return fmt.Sprintf("%s(%s)", r.Table, r.Column)
	}
	terms := make([]string, len(r.Filter))
	for i, t := range r.Filter {
		if t.Any {
			terms[i] = t.Column + "=*"
		} else {
			terms[i] = t.Column + "=" + t.Value
		}
	}
	return fmt.Sprintf("%s{%s}", r.Table, strings.Join(terms, ", "))
}

// ForeignKey links a local column to a target.
type ForeignKey struct {
	Column string
	Ref    ForeignKeyRef
}

// TableSpec is the static metadata for one legacy table type.
type TableSpec struct {
	Code        string
	Name        string
	PrimaryKey  KeySpec
	Unique      []KeySpec
	ForeignKeys []ForeignKey
	Indexes     []KeySpec
}

// Columns lists every column the entry names, in first-mention order.
func (s *TableSpec) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(names ...string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				cols = append(cols, n)
			}
		}
	}
	add(s.PrimaryKey.Columns...)
	for _, u := range s.Unique {
		add(u.Columns...)
	}
	for _, fk := range s.ForeignKeys {
		add(fk.Column)
	}
	for _, idx := range s.Indexes {
		add(idx.Columns...)
	}
	return cols
}

// MissingColumns returns the named columns that are not among fields.
func (s *TableSpec) MissingColumns(fields []Field) []string {
	have := make(map[string]bool, len(fields))
	for _, f := range fields {
		have[f.Name] = true
	}
	var missing []string
	for _, c := range s.Columns() {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// foreignKeyColumn reports whether col is the local side of any foreign key.
func (s *TableSpec) foreignKeyColumn(col string) bool {
	if s == nil {
		return false
	}
	for _, fk := range s.ForeignKeys {
		if fk.Column == col {
			return true
		}
	}
	return false
}

// Common reference targets.
var (
	refPerson  = refColumn("$", "PER_NO")
	refDataset = refColumn("D", "DSID")
	refTagType = refColumn("T", "ETYPENUM")
	refName    = refColumn("N", "RECNO")
)

// catalog holds the TMG 5-9 table types keyed by file suffix. Declaration
// order is processing order: every table appears after the tables its plain
// foreign keys point to (self references excepted).
var catalog = []TableSpec{
	// Data sets. NAMESTYLE and PLACESTYLE point at ST, which is loaded later.
	{Code: "D", Name: "Data Sets", PrimaryKey: single("DSID")},

	// People
	{
		Code: "C", Name: "Flags", PrimaryKey: single("FLAGID"),
		Indexes:     columnKeys("FLAGLABEL", "FLAGFIELD", "SEQUENCE"),
		ForeignKeys: []ForeignKey{{"DSID", refDataset}},
	},
	{
		Code: "$", Name: "Person", PrimaryKey: single("PER_NO"),
		Unique: uniqueKeys(single("REF_ID")),
		ForeignKeys: []ForeignKey{
			{"FATHER", refPerson},
			{"MOTHER", refPerson},
			{"DSID", refDataset},
			{"SPOULAST", refPerson},
		},
	},

	// Focus groups
	{
		Code: "O", Name: "Focus Group", PrimaryKey: single("GROUPNUM"),
		Indexes: columnKeys("GROUPNAME"),
	},
	{
		Code: "B", Name: "Focus Group Member", PrimaryKey: composite("GROUPNUM", "MEMBERNUM"),
		ForeignKeys: []ForeignKey{
			{"GROUPNUM", refColumn("O", "GROUPNUM")},
			{"MEMBERNUM", refPerson},
			{"DSID", refDataset},
		},
	},

	// Miscellaneous people tables
	{
		Code: "DNA", Name: "DNA", PrimaryKey: single("ID_DNA"),
		ForeignKeys: []ForeignKey{
			{"DSID", refDataset},
			{"ID_PERSON", refPerson},
		},
	},
	{
		Code: "K", Name: "Timeline", PrimaryKey: composite("TNAME", "IDLOCK"),
		ForeignKeys: []ForeignKey{
			{"IDLOCK", refPerson},
			{"DSID", refDataset},
		},
	},
	{
		Code: "XD", Name: "Excluded Pair", PrimaryKey: composite("PER1", "PER2"),
		ForeignKeys: []ForeignKey{
			{"DSID", refDataset},
			{"PER1", refPerson},
			{"PER2", refPerson},
		},
	},

	// Styles
	{
		Code: "NPT", Name: "Name Part Type", PrimaryKey: single("ID"),
		Unique:      uniqueKeys(single("TEMPLATE")),
		Indexes:     columnKeys("VALUE", "SHORTVALUE"),
		ForeignKeys: []ForeignKey{{"DSID", refDataset}},
	},
	{
		Code: "ST", Name: "Style", PrimaryKey: single("STYLEID"),
		Indexes:     columnKeys("STYLENAME"),
		ForeignKeys: []ForeignKey{{"DSID", refDataset}},
	},

	// Places
	{
		Code: "P", Name: "Place", PrimaryKey: single("RECNO"),
		ForeignKeys: []ForeignKey{
			{"STYLEID", refColumn("ST", "STYLEID")},
			{"DSID", refDataset},
		},
	},
	{
		Code: "PD", Name: "Place Dictionary", PrimaryKey: single("UID"),
		Indexes: columnKeys("VALUE", "SDX"),
	},
	{
		Code: "PPT", Name: "Place Part Type", PrimaryKey: single("ID"),
		Indexes:     columnKeys("VALUE", "SHORTVALUE"),
		ForeignKeys: []ForeignKey{{"DSID", refDataset}},
	},
	{
		Code: "PPV", Name: "Place Part Value", PrimaryKey: composite("RECNO", "TYPE"),
		ForeignKeys: []ForeignKey{
			{"RECNO", refColumn("P", "RECNO")},
			{"UID", refColumn("PD", "UID")},
			{"ID", refColumn("PPT", "ID")},
			{"DSID", refDataset},
		},
	},

	// Tags
	{
		Code: "T", Name: "Tag Type", PrimaryKey: single("ETYPENUM"),
		Indexes:     columnKeys("ETYPENAME", "GEDCOM_TAG"),
		ForeignKeys: []ForeignKey{{"DSID", refDataset}},
	},
	{
		// PTYPE should point at a non-primary relationship tag (ADMIN 2, 3 or 12).
		Code: "F", Name: "Relationship", PrimaryKey: single("RECNO"),
		ForeignKeys: []ForeignKey{
			{"CHILD", refPerson},
			{"PARENT", refPerson},
			{"DSID", refDataset},
			{"PTYPE", refTagType},
		},
	},
	{
		Code: "ND", Name: "Name Dictionary", PrimaryKey: single("UID"),
		Indexes: columnKeys("VALUE", "SDX"),
	},
	{
		Code: "N", Name: "Name", PrimaryKey: single("RECNO"),
		Indexes: columnKeys("SRTDATE"),
		ForeignKeys: []ForeignKey{
			{"NPER", refPerson},
			{"ALTYPE", refTagType},
			{"DSID", refDataset},
			{"STYLEID", refColumn("ST", "STYLEID")},
			{"SURID", refColumn("ND", "UID")},
			{"GIVID", refColumn("ND", "UID")},
		},
	},
	{
		Code: "NPV", Name: "Name Part Value", PrimaryKey: composite("RECNO", "TYPE"),
		ForeignKeys: []ForeignKey{
			{"RECNO", refColumn("N", "RECNO")},
			{"UID", refColumn("ND", "UID")},
			{"ID", refColumn("NPT", "ID")},
			{"DSID", refDataset},
		},
	},
	{
		Code: "G", Name: "Event", PrimaryKey: single("RECNO"),
		ForeignKeys: []ForeignKey{
			{"ETYPE", refTagType},
			{"DSID", refDataset},
			{"PER1", refPerson},
			{"PER2", refPerson},
		},
	},
	{
		Code: "E", Name: "Event Witness", PrimaryKey: composite("GNUM", "EPER"),
		ForeignKeys: []ForeignKey{
			{"EPER", refPerson},
			{"GNUM", refColumn("G", "RECNO")},
			{"DSID", refDataset},
			{"NAMEREC", refName},
		},
	},

	// Sources
	{
		Code: "A", Name: "Source Type", PrimaryKey: composite("RULESET", "SOURTYPE"),
		Indexes: columnKeys("NAME"),
		ForeignKeys: []ForeignKey{
			{"DSID", refDataset},
			{"TRANS_TO", refFiltered("A", eq("RULESET", "1"), anyValue("SOURTYPE"))},
			{"SAMEAS", refFiltered("A", eq("RULESET", "1"), anyValue("SOURTYPE"))},
		},
	},
	{
		Code: "U", Name: "Source Element", PrimaryKey: single("RECNO"),
		Unique:      uniqueKeys(single("ELEMENT")),
		Indexes:     columnKeys("GROUPNUM"),
		ForeignKeys: []ForeignKey{{"DSID", refDataset}},
	},
	{
		Code: "M", Name: "Source", PrimaryKey: single("MAJNUM"),
		Indexes: columnKeys("REF_ID", "ABBREV", "TITLE"),
		ForeignKeys: []ForeignKey{
			{"SPERNO", refPerson},
			{"SUBJECTID", refPerson},
			{"COMPILERID", refPerson},
			{"EDITORID", refPerson},
			{"SPERNO2", refPerson},
			{"DSID", refDataset},
			{"TYPE", refFiltered("A", eq("RULESET", "1"), anyValue("SOURCETYPE"))},
			{"CUSTTYPE", refFiltered("A", eq("RULESET", "3"), anyValue("SOURCETYPE"))},
		},
	},
	{
		Code: "R", Name: "Repository", PrimaryKey: single("RECNO"),
		Indexes: columnKeys("NAME", "ABBREV"),
		ForeignKeys: []ForeignKey{
			{"DSID", refDataset},
			{"RPERNO", refPerson},
			{"ADDRESS", refColumn("P", "RECNO")},
		},
	},
	{
		Code: "W", Name: "Repository Link", PrimaryKey: composite("MNUMBER", "RNUMBER"),
		ForeignKeys: []ForeignKey{
			{"MNUMBER", refColumn("M", "MAJNUM")},
			{"RNUMBER", refColumn("R", "RECNO")},
			{"DSID", refDataset},
		},
	},
	{
		// REFREC points at N, F, M, G, P or S depending on STYPE.
		Code: "S", Name: "Citation", PrimaryKey: single("RECNO"),
		ForeignKeys: []ForeignKey{
			{"MAJSOURCE", refColumn("M", "MAJNUM")},
			{"DSID", refDataset},
		},
	},

	// Miscellaneous
	{
		// No primary key: several log entries may exist for the same item.
		Code: "L", Name: "Research Log",
		ForeignKeys: []ForeignKey{
			{"RLPER1", refPerson},
			{"RLPER2", refPerson},
			{"RLGTYPE", refTagType},
			{"DSID", refDataset},
			{"ID_PERSON", refPerson},
			{"ID_EVENT", refColumn("G", "RECNO")},
			{"ID_SOURCE", refColumn("M", "MAJNUM")},
			{"ID_REPOS", refColumn("R", "RECNO")},
		},
	},
	{
		Code: "I", Name: "Exhibit", PrimaryKey: single("IDEXHIBIT"),
		Indexes: columnKeys("XNAME"),
		ForeignKeys: []ForeignKey{
			{"RLPER1", refPerson},
			{"RLPER2", refPerson},
			{"RLGTYPE", refTagType},
			{"DSID", refDataset},
			{"ID_PERSON", refPerson},
			{"ID_EVENT", refColumn("G", "RECNO")},
			{"ID_SOURCE", refColumn("M", "MAJNUM")},
			{"ID_REPOS", refColumn("R", "RECNO")},
			{"ID_CIT", refColumn("S", "RECNO")},
			{"ID_PLACE", refColumn("P", "RECNO")},
		},
	},
	{
		// Undocumented by TMG.
		Code: "PICK1", Name: "Pick List",
		ForeignKeys: []ForeignKey{
			{"REF_ID", refColumn("$", "REF_ID")},
			{"FATHER", refColumn("$", "REF_ID")},
			{"MOTHER", refColumn("$", "REF_ID")},
		},
	},
}

var catalogIndex = func() map[string]*TableSpec {
	m := make(map[string]*TableSpec, len(catalog))
	for i := range catalog {
		m[catalog[i].Code] = &catalog[i]
	}
	return m
}()

// lookupSpec returns the catalog entry for a table code. Unknown codes are
// not an error; such tables are converted without keys or indexes.
func lookupSpec(code string) (*TableSpec, bool) {
	s, ok := catalogIndex[strings.ToUpper(code)]
	return s, ok
}
