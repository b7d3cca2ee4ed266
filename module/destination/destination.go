// Package destination defines the destination module category: the sink
// at the end of a routing graph. It carries no props; the backend decides
// where rendered signal actually goes.
package destination

import "github.com/c360/audiograph/module"

// Category is the destination category tag.
const Category = module.Category("destination")

// Register adds the destination category to the catalog.
func Register(catalog *module.Catalog) error {
	return catalog.Register(&module.CategorySpec{
		Category:    Category,
		Description: "Terminal sink for the routing graph",
		Defaults: func() module.Props {
			return module.Props{}
		},
		Fields: map[string]module.FieldSpec{},
	})
}
