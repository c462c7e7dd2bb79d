package agent

import "testing"

type searchArgs struct {
	Query  string `json:"query" binding:"required"`
	Period string `json:"period"`
}

func TestDecodeArgs_ValidInput(t *testing.T) {
	args, diags, err := DecodeArgs[searchArgs](`{"query":"milk","period":"this_month"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if args.Query != "milk" || args.Period != "this_month" {
		t.Fatalf("decoded wrong values: %+v", args)
	}
}

func TestDecodeArgs_MissingRequiredField(t *testing.T) {
	_, diags, err := DecodeArgs[searchArgs](`{"period":"today"}`)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if diags["Query"] != "required" {
		t.Fatalf("expected Query:required diagnostic, got %+v", diags)
	}
}

func TestDecodeArgs_MalformedJSON(t *testing.T) {
	_, diags, err := DecodeArgs[searchArgs](`{"query": `)
	if err == nil {
		t.Fatal("expected JSON error")
	}
	if diags["_arguments"] != "not valid JSON" {
		t.Fatalf("expected _arguments diagnostic, got %+v", diags)
	}
}

func TestDecodeArgs_EmptyStringMeansEmptyObject(t *testing.T) {
	type optionalArgs struct {
		Name string `json:"name"`
	}
	args, diags, err := DecodeArgs[optionalArgs]("")
	if err != nil || diags != nil {
		t.Fatalf("empty raw args must decode as {}: err=%v diags=%+v", err, diags)
	}
	if args.Name != "" {
		t.Fatalf("unexpected value: %+v", args)
	}
}

func TestObjectSchema(t *testing.T) {
	schema := objectSchema(map[string]interface{}{
		"query":  stringProp("search text"),
		"count":  intProp("max results"),
		"checked": boolProp("filter to checked"),
		"period": enumProp("range keyword", "today", "this_month"),
		"items":  arrayProp("line items", stringProp("label")),
	}, "query")

	if schema["type"] != "object" {
		t.Fatalf("expected object type, got %v", schema["type"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Fatalf("unexpected required list: %v", schema["required"])
	}
	props := schema["properties"].(map[string]interface{})
	if len(props) != 5 {
		t.Fatalf("expected 5 properties, got %d", len(props))
	}
	period := props["period"].(map[string]interface{})
	enum := period["enum"].([]string)
	if len(enum) != 2 || enum[0] != "today" {
		t.Fatalf("unexpected enum: %v", enum)
	}
}

func TestObjectSchema_NoRequired(t *testing.T) {
	schema := objectSchema(map[string]interface{}{"name": stringProp("n")})
	if _, present := schema["required"]; present {
		t.Fatal("required must be omitted when empty")
	}
}
