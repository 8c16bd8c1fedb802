// Package graphdb refines the nosqlapi contract for graph stores.
//
// Nodes and relationships render in Cypher pattern syntax:
//
//	n := graphdb.NewNode("p", graphdb.Property{"name": "M"}, "Person")
//	n.Render() // (p:Person {name: 'M'})
package graphdb
