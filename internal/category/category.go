// Package category guesses a seeded category for a basket entry from its name.
package category

import "strings"

// Category names as seeded in the categories lookup table.
const (
	Fruit     = "Obst"
	Vegetable = "Gemüse"
	Meat      = "Fleisch"
	Dairy     = "Milchprodukte"
	Grain     = "Getreide"
	Fish      = "Fisch"
	Bakery    = "Backwaren"
	Cold      = "Wurstwaren"
)

// Categorize returns the category for name and whether one was found.
// Matching is case-insensitive: exact match first, then substring match.
func Categorize(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}

	if cat, ok := exactMatch[name]; ok {
		return cat, true
	}

	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category, true
		}
	}
	return "", false
}

// For returns the categories to store for a new basket entry: the given
// ones when present, otherwise the guessed category, otherwise none.
func For(name string, given []string) []string {
	if len(given) > 0 {
		return given
	}
	if cat, ok := Categorize(name); ok {
		return []string{cat}
	}
	return []string{}
}

var exactMatch = map[string]string{
	// Obst
	"apfel":     Fruit,
	"äpfel":     Fruit,
	"apple":     Fruit,
	"apples":    Fruit,
	"banane":    Fruit,
	"bananen":   Fruit,
	"banana":    Fruit,
	"bananas":   Fruit,
	"birne":     Fruit,
	"birnen":    Fruit,
	"orange":    Fruit,
	"orangen":   Fruit,
	"zitrone":   Fruit,
	"zitronen":  Fruit,
	"lemon":     Fruit,
	"trauben":   Fruit,
	"grapes":    Fruit,
	"erdbeeren": Fruit,
	"kiwi":      Fruit,
	"mango":     Fruit,
	"pfirsich":  Fruit,
	"pflaumen":  Fruit,
	"kirschen":  Fruit,
	"ananas":    Fruit,
	"avocado":   Fruit,

	// Gemüse
	"tomate":      Vegetable,
	"tomaten":     Vegetable,
	"tomatoes":    Vegetable,
	"kartoffel":   Vegetable,
	"kartoffeln":  Vegetable,
	"potatoes":    Vegetable,
	"zwiebel":     Vegetable,
	"zwiebeln":    Vegetable,
	"onions":      Vegetable,
	"knoblauch":   Vegetable,
	"garlic":      Vegetable,
	"karotten":    Vegetable,
	"möhren":      Vegetable,
	"carrots":     Vegetable,
	"gurke":       Vegetable,
	"paprika":     Vegetable,
	"salat":       Vegetable,
	"lettuce":     Vegetable,
	"spinat":      Vegetable,
	"spinach":     Vegetable,
	"brokkoli":    Vegetable,
	"broccoli":    Vegetable,
	"zucchini":    Vegetable,
	"lauch":       Vegetable,
	"sellerie":    Vegetable,
	"pilze":       Vegetable,
	"champignons": Vegetable,
	"mais":        Vegetable,

	// Fleisch
	"hähnchen":        Meat,
	"huhn":            Meat,
	"chicken":         Meat,
	"rindfleisch":     Meat,
	"beef":            Meat,
	"schweinefleisch": Meat,
	"pork":            Meat,
	"hackfleisch":     Meat,
	"pute":            Meat,
	"steak":           Meat,
	"lamm":            Meat,
	"speck":           Meat,
	"bacon":           Meat,

	// Milchprodukte
	"milch":   Dairy,
	"milk":    Dairy,
	"butter":  Dairy,
	"käse":    Dairy,
	"cheese":  Dairy,
	"joghurt": Dairy,
	"yogurt":  Dairy,
	"quark":   Dairy,
	"sahne":   Dairy,
	"schmand": Dairy,
	"eier":    Dairy,
	"eggs":    Dairy,

	// Getreide
	"reis":         Grain,
	"rice":         Grain,
	"nudeln":       Grain,
	"pasta":        Grain,
	"spaghetti":    Grain,
	"mehl":         Grain,
	"flour":        Grain,
	"haferflocken": Grain,
	"müsli":        Grain,
	"cornflakes":   Grain,
	"couscous":     Grain,
	"grieß":        Grain,

	// Fisch
	"lachs":     Fish,
	"salmon":    Fish,
	"thunfisch": Fish,
	"tuna":      Fish,
	"forelle":   Fish,
	"hering":    Fish,
	"kabeljau":  Fish,
	"garnelen":  Fish,
	"shrimp":    Fish,
	"fish":      Fish,

	// Backwaren
	"brot":      Bakery,
	"bread":     Bakery,
	"brötchen":  Bakery,
	"toast":     Bakery,
	"croissant": Bakery,
	"brezel":    Bakery,
	"kuchen":    Bakery,
	"baguette":  Bakery,

	// Wurstwaren
	"salami":     Cold,
	"schinken":   Cold,
	"ham":        Cold,
	"wurst":      Cold,
	"würstchen":  Cold,
	"leberwurst": Cold,
	"mortadella": Cold,
	"sausage":    Cold,
}

type substringEntry struct {
	keyword  string
	category string
}

// Longer and more specific keywords come first.
var substringMatches = []substringEntry{
	// Wurstwaren before Fleisch so "fleischwurst" is not meat.
	{"fleischwurst", Cold},
	{"leberwurst", Cold},
	{"bratwurst", Cold},
	{"aufschnitt", Cold},
	{"schinken", Cold},
	{"salami", Cold},
	{"wurst", Cold},

	{"fischstäbchen", Fish},
	{"thunfisch", Fish},
	{"lachs", Fish},
	{"fisch", Fish},

	{"hähnchen", Meat},
	{"hackfleisch", Meat},
	{"schnitzel", Meat},
	{"fleisch", Meat},
	{"chicken", Meat},
	{"beef", Meat},

	{"vollkornbrot", Bakery},
	{"brötchen", Bakery},
	{"brot", Bakery},
	{"bread", Bakery},
	{"kuchen", Bakery},

	{"frischkäse", Dairy},
	{"joghurt", Dairy},
	{"yogurt", Dairy},
	{"käse", Dairy},
	{"cheese", Dairy},
	{"milch", Dairy},
	{"milk", Dairy},
	{"sahne", Dairy},
	{"butter", Dairy},

	{"haferflocken", Grain},
	{"vollkorn", Grain},
	{"nudel", Grain},
	{"reis", Grain},
	{"rice", Grain},
	{"pasta", Grain},
	{"mehl", Grain},

	{"kartoffel", Vegetable},
	{"tomate", Vegetable},
	{"zwiebel", Vegetable},
	{"paprika", Vegetable},
	{"salat", Vegetable},
	{"gemüse", Vegetable},
	{"kohl", Vegetable},
	{"bohnen", Vegetable},
	{"erbsen", Vegetable},
	{"karotte", Vegetable},
	{"möhre", Vegetable},

	{"beeren", Fruit},
	{"berries", Fruit},
	{"apfel", Fruit},
	{"apple", Fruit},
	{"banane", Fruit},
	{"banana", Fruit},
	{"obst", Fruit},
	{"fruit", Fruit},
}
