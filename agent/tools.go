package agent

import (
	"context"

	"github.com/luxtick/luxtick_backend/workflow"
	"gorm.io/gorm"
)

// Service exposes the purchase-tracking workflows to the tool catalog.
type Service struct {
	DB *gorm.DB
}

// BuildRegistry assembles the full tool catalog over the service.
func BuildRegistry(svc *Service) *Registry {
	r := NewRegistry()

	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "search_purchases",
			Description: "Search past purchases by item name, date period or store.",
			Parameters: objectSchema(map[string]interface{}{
				"query":      stringProp("Free text to match against item labels and product names"),
				"period":     enumProp("Named period", "today", "this_week", "this_month", "last_month", "this_year", "last_3_months", "last_year"),
				"start_date": stringProp("Start date YYYY-MM-DD (overrides period)"),
				"end_date":   stringProp("End date YYYY-MM-DD (overrides period)"),
				"store_name": stringProp("Restrict to one store"),
				"limit":      intProp("Maximum rows to return"),
			}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[workflow.SearchPurchasesInput](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			rows, err := workflow.SearchPurchases(ctx, svc.DB, userId, *args)
			return rows, nil, err
		},
	})

	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "get_spending_summary",
			Description: "Total spending for a period, optionally grouped by store or category.",
			Parameters: objectSchema(map[string]interface{}{
				"period":     enumProp("Named period", "today", "this_week", "this_month", "last_month", "this_year", "last_3_months", "last_year"),
				"start_date": stringProp("Start date YYYY-MM-DD (overrides period)"),
				"end_date":   stringProp("End date YYYY-MM-DD (overrides period)"),
				"group_by":   enumProp("Grouping dimension", "store", "category"),
			}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[workflow.SpendingSummaryInput](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			summary, err := workflow.GetSpendingSummary(ctx, svc.DB, userId, *args)
			return summary, nil, err
		},
	})

	type frequentArgs struct {
		Period string `json:"period"`
		Limit  int    `json:"limit"`
	}
	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "get_frequent_purchases",
			Description: "Products ranked by how often they were bought.",
			Parameters: objectSchema(map[string]interface{}{
				"period": enumProp("Named period", "this_month", "last_month", "this_year", "last_3_months", "last_year"),
				"limit":  intProp("Maximum products to return"),
			}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[frequentArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			rows, err := workflow.GetFrequentPurchases(ctx, svc.DB, userId, args.Period, args.Limit)
			return rows, nil, err
		},
	})

	type productQueryArgs struct {
		Product string `json:"product" binding:"required"`
	}
	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "compare_prices",
			Description: "Compare a product's price across the stores it was bought at.",
			Parameters: objectSchema(map[string]interface{}{
				"product": stringProp("Product name to compare"),
			}, "product"),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[productQueryArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			comparison, err := workflow.ComparePrices(ctx, svc.DB, userId, args.Product)
			return comparison, nil, err
		},
	})

	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "get_product_history",
			Description: "Every purchase of one product with price statistics.",
			Parameters: objectSchema(map[string]interface{}{
				"product": stringProp("Product name to look up"),
			}, "product"),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[productQueryArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			history, err := workflow.GetProductHistory(ctx, svc.DB, userId, args.Product)
			return history, nil, err
		},
	})

	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "get_active_discounts",
			Description: "Discounts the user registered that are still valid.",
			Parameters:  objectSchema(map[string]interface{}{}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			discounts, err := workflow.GetActiveDiscounts(ctx, svc.DB, userId)
			return discounts, nil, err
		},
	})

	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "add_manual_purchase",
			Description: "Record a purchase the user describes in chat, without a receipt photo.",
			Parameters: objectSchema(map[string]interface{}{
				"product_name": stringProp("What was bought"),
				"price":        stringProp("Unit price paid"),
				"quantity":     stringProp("Quantity, defaults to 1"),
				"store_name":   stringProp("Where it was bought"),
				"date":         stringProp("Purchase date YYYY-MM-DD, defaults to today"),
			}, "product_name", "price"),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[workflow.ManualPurchaseInput](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			receipt, err := workflow.AddManualPurchase(ctx, svc.DB, userId, *args)
			return receipt, nil, err
		},
	})

	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "register_discount",
			Description: "Save a discount or offer the user spotted.",
			Parameters: objectSchema(map[string]interface{}{
				"description":  stringProp("What the offer is"),
				"type":         enumProp("Discount kind", "percentage", "fixed", "bogo"),
				"value":        stringProp("Percentage or amount, empty for bogo"),
				"product_name": stringProp("Product the offer applies to"),
				"store_name":   stringProp("Store offering it"),
				"valid_until":  stringProp("Last valid date YYYY-MM-DD"),
			}, "description", "type", "valid_until"),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[workflow.RegisterDiscountInput](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			discount, err := workflow.RegisterDiscount(ctx, svc.DB, userId, *args)
			return discount, nil, err
		},
	})

	type createListArgs struct {
		Name  string                           `json:"name"`
		Items []workflow.ShoppingListItemInput `json:"items" binding:"required,min=1,dive"`
	}
	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "create_shopping_list",
			Description: "Create a named shopping list with items.",
			Parameters: objectSchema(map[string]interface{}{
				"name": stringProp("List name, defaults to 'shopping'"),
				"items": arrayProp("Items to put on the list", objectSchema(map[string]interface{}{
					"label":    stringProp("What to buy"),
					"quantity": stringProp("How much, free text"),
				}, "label")),
			}, "items"),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[createListArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			list, err := workflow.CreateShoppingList(ctx, svc.DB, userId, args.Name, args.Items)
			return list, nil, err
		},
	})

	type updateListArgs struct {
		Name   string                           `json:"name"`
		Add    []workflow.ShoppingListItemInput `json:"add"`
		Remove []string                         `json:"remove"`
		Check  []string                         `json:"check"`
	}
	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "update_shopping_list",
			Description: "Add, remove or check off items on a shopping list.",
			Parameters: objectSchema(map[string]interface{}{
				"name": stringProp("List name, defaults to 'shopping'"),
				"add": arrayProp("Items to add", objectSchema(map[string]interface{}{
					"label":    stringProp("What to buy"),
					"quantity": stringProp("How much, free text"),
				}, "label")),
				"remove": arrayProp("Labels to remove", stringProp("Item label")),
				"check":  arrayProp("Labels to mark as bought", stringProp("Item label")),
			}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[updateListArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			list, err := workflow.UpdateShoppingList(ctx, svc.DB, userId, args.Name, args.Add, args.Remove, args.Check)
			return list, nil, err
		},
	})

	type getListArgs struct {
		Name string `json:"name"`
	}
	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "get_shopping_lists",
			Description: "Show a shopping list by name, or all lists when no name is given.",
			Parameters: objectSchema(map[string]interface{}{
				"name": stringProp("List name; empty returns every list"),
			}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[getListArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			if args.Name == "" {
				lists, err := workflow.GetAllShoppingLists(ctx, svc.DB, userId)
				return lists, nil, err
			}
			list, err := workflow.GetShoppingList(ctx, svc.DB, userId, args.Name)
			return list, nil, err
		},
	})

	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "suggest_shopping_list",
			Description: "Suggest products that look due for a repurchase based on buying cadence.",
			Parameters:  objectSchema(map[string]interface{}{}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			suggestions, err := workflow.SuggestShoppingList(ctx, svc.DB, userId)
			return suggestions, nil, err
		},
	})

	type analyticsArgs struct {
		Query string `json:"query" binding:"required"`
	}
	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "run_analytics_query",
			Description: "Run a read-only SQL SELECT over the purchase data. Tables: receipts, receipt_items, products, product_aliases, stores, categories, discounts. Always filter by user_id = @userId.",
			Parameters: objectSchema(map[string]interface{}{
				"query": stringProp("A single SELECT statement"),
			}, "query"),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[analyticsArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			rows, err := workflow.RunAnalyticsQuery(ctx, userId, args.Query)
			return rows, nil, err
		},
	})

	type exportArgs struct {
		Period    string `json:"period"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	r.Register(Tool{
		Definition: ToolDefinition{
			Name:        "export_spending_report",
			Description: "Generate a downloadable spreadsheet of purchases for a period.",
			Parameters: objectSchema(map[string]interface{}{
				"period":     enumProp("Named period", "this_month", "last_month", "this_year", "last_3_months", "last_year"),
				"start_date": stringProp("Start date YYYY-MM-DD (overrides period)"),
				"end_date":   stringProp("End date YYYY-MM-DD (overrides period)"),
			}),
		},
		Handler: func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error) {
			args, diags, err := DecodeArgs[exportArgs](rawArgs)
			if diags != nil || err != nil {
				return nil, diags, err
			}
			url, err := workflow.ExportSpendingReport(ctx, svc.DB, userId, args.Period, args.StartDate, args.EndDate)
			if err != nil {
				return nil, nil, err
			}
			return map[string]string{"download_url": url}, nil, nil
		},
	})

	return r
}
