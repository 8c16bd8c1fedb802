// Package columndb refines the nosqlapi contract for wide-column stores.
//
// Tables are ordered sequences of typed columns; iterating a table zips
// its columns into row tuples:
//
//	x := columndb.MustColumn("x", []any{1, 2, 3})
//	y := columndb.MustColumn("y", []any{"a", "b", "c"})
//	t := columndb.NewTable("t", x, y)
//	for row := range t.Rows() {
//		fmt.Println(row) // [1 a] [2 b] [3 c]
//	}
package columndb
