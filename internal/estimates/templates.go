package estimates

import "github.com/roadline/roadline/internal/orders"

type partTemplate struct {
	Name      string
	Quantity  float64
	BasePrice float64
}

type laborTemplate struct {
	Name  string
	Hours float64
	Rate  float64
}

type categoryTemplate struct {
	Parts []partTemplate
	Labor []laborTemplate
}

// categoryTemplates keys the default parts and labor lists by order category.
// Unknown categories fall back to genericTemplate.
var categoryTemplates = map[orders.Category]categoryTemplate{
	orders.CategoryEngine: {
		Parts: []partTemplate{
			{Name: "Oil filter", Quantity: 1, BasePrice: 18.50},
			{Name: "Engine oil 5W-30 (L)", Quantity: 4.5, BasePrice: 12.00},
			{Name: "Spark plug set", Quantity: 1, BasePrice: 64.00},
			{Name: "Timing belt kit", Quantity: 1, BasePrice: 210.00},
		},
		Labor: []laborTemplate{
			{Name: "Engine diagnostics", Hours: 1.0, Rate: 55.00},
			{Name: "Timing belt replacement", Hours: 3.5, Rate: 60.00},
			{Name: "Oil and filter service", Hours: 0.5, Rate: 45.00},
		},
	},
	orders.CategoryTransmission: {
		Parts: []partTemplate{
			{Name: "Transmission fluid (L)", Quantity: 6, BasePrice: 14.50},
			{Name: "Transmission filter", Quantity: 1, BasePrice: 42.00},
			{Name: "Pan gasket", Quantity: 1, BasePrice: 27.00},
		},
		Labor: []laborTemplate{
			{Name: "Transmission diagnostics", Hours: 1.5, Rate: 60.00},
			{Name: "Fluid and filter change", Hours: 2.0, Rate: 55.00},
		},
	},
	orders.CategorySuspension: {
		Parts: []partTemplate{
			{Name: "Shock absorber (front pair)", Quantity: 1, BasePrice: 185.00},
			{Name: "Control arm bushing set", Quantity: 1, BasePrice: 58.00},
			{Name: "Stabilizer link", Quantity: 2, BasePrice: 24.00},
		},
		Labor: []laborTemplate{
			{Name: "Suspension inspection", Hours: 0.8, Rate: 50.00},
			{Name: "Shock absorber replacement", Hours: 2.2, Rate: 55.00},
			{Name: "Wheel alignment", Hours: 1.0, Rate: 48.00},
		},
	},
	orders.CategoryElectrical: {
		Parts: []partTemplate{
			{Name: "Battery 70Ah", Quantity: 1, BasePrice: 145.00},
			{Name: "Alternator belt", Quantity: 1, BasePrice: 32.00},
			{Name: "Fuse assortment", Quantity: 1, BasePrice: 9.50},
		},
		Labor: []laborTemplate{
			{Name: "Electrical diagnostics", Hours: 1.2, Rate: 58.00},
			{Name: "Battery and charging check", Hours: 0.6, Rate: 48.00},
		},
	},
	orders.CategoryBrakes: {
		Parts: []partTemplate{
			{Name: "Brake pad set (front)", Quantity: 1, BasePrice: 68.00},
			{Name: "Brake disc (pair)", Quantity: 1, BasePrice: 124.00},
			{Name: "Brake fluid DOT4 (L)", Quantity: 1, BasePrice: 11.00},
		},
		Labor: []laborTemplate{
			{Name: "Brake inspection", Hours: 0.5, Rate: 50.00},
			{Name: "Pad and disc replacement", Hours: 1.8, Rate: 55.00},
			{Name: "Brake fluid flush", Hours: 0.7, Rate: 50.00},
		},
	},
}

var genericTemplate = categoryTemplate{
	Parts: []partTemplate{
		{Name: "Consumables", Quantity: 1, BasePrice: 35.00},
	},
	Labor: []laborTemplate{
		{Name: "General diagnostics", Hours: 1.0, Rate: 55.00},
		{Name: "General repair", Hours: 2.0, Rate: 50.00},
	},
}

func templateFor(category orders.Category) categoryTemplate {
	if tpl, ok := categoryTemplates[category]; ok {
		return tpl
	}
	return genericTemplate
}
