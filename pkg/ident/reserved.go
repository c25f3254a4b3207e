package ident

var reserved = []string{
	"select", "insert", "update", "delete", "from", "where", "join", "inner", "outer", "left", "right",
	"on", "as", "table", "column", "index", "primary", "foreign", "key", "constraint", "alter",
	"create", "drop", "database", "schema", "view", "trigger", "function", "procedure", "begin",
	"end", "if", "then", "else", "case", "when", "group", "order", "by", "having", "limit",
	"offset", "union", "intersect", "except", "exists", "in", "not", "and", "or", "like",
	"between", "is", "null", "true", "false", "distinct", "all", "any", "some", "count",
	"sum", "avg", "min", "max", "user", "role", "grant", "revoke", "commit", "rollback",
}

var reservedSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(reserved))
	for _, w := range reserved {
		m[w] = struct{}{}
	}
	return m
}()

// IsReserved reports whether word is a SQL keyword that cannot be used as a
// bare column name.
func IsReserved(word string) bool {
	_, ok := reservedSet[word]
	return ok
}

// Reserved returns the reserved keywords.
func Reserved() []string {
	out := make([]string, len(reserved))
	copy(out, reserved)
	return out
}
