package enrich

import "strings"

// FlavorCatalog is the ordered list of flavor substrings. Order is match
// priority: when a name contains two entries the earlier entry wins.
var FlavorCatalog = []string{
	"french vanilla", "hazelnut", "original", "xpresso", "decaf", "classic",
	"salted caramel", "belgian mocha", "vietnamese", "caramel latte", "filter kaapi",
}

// DefaultFlavor is returned when no catalog entry matches.
const DefaultFlavor = "Original"

// ExtractFlavor returns the title-cased first catalog entry found in name,
// or DefaultFlavor. A product-lookup miss leaves name empty and so gets the
// default too.
func ExtractFlavor(name string) string {
	lower := strings.ToLower(name)
	for _, f := range FlavorCatalog {
		if strings.Contains(lower, f) {
			return titleCase(f)
		}
	}
	return DefaultFlavor
}

var packageChain = []struct{ needle, label string }{
	{"sachet", "Sachet"},
	{"glass jar", "Glass Jar"},
	{"can", "Can"},
	{"bottle", "Bottle"},
	{"bag", "Bag"},
	{"mug", "Mug"},
	{"box", "Box"},
}

// DefaultPackageType is returned when no package test matches.
const DefaultPackageType = "Pack"

// ExtractPackageType walks the fixed package chain; first substring hit wins.
func ExtractPackageType(name string) string {
	lower := strings.ToLower(name)
	for _, p := range packageChain {
		if strings.Contains(lower, p.needle) {
			return p.label
		}
	}
	return DefaultPackageType
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
