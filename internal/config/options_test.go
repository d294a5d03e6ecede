package config

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestOptions_Accessors(t *testing.T) {
	var o Options
	if err := json.Unmarshal([]byte(`{
		"has_header": true,
		"lazy": "true",
		"fields": 15,
		"comma": ";",
		"tab": "\\t",
		"multi": "ab",
		"header_map": {"Education-Num": "education_num", "n": 3},
		"columns": ["a", 1, "b"]
	}`), &o); err != nil {
		t.Fatal(err)
	}

	if !o.Bool("has_header", false) || !o.Bool("lazy", false) || o.Bool("nope", false) {
		t.Fatal("Bool")
	}
	if o.Int("fields", 0) != 15 || o.Int("nope", 7) != 7 {
		t.Fatal("Int")
	}
	if o.Rune("comma", ',') != ';' || o.Rune("tab", ',') != '\t' || o.Rune("multi", ',') != ',' {
		t.Fatal("Rune")
	}
	if o.String("comma", "") != ";" || o.String("fields", "x") != "x" {
		t.Fatal("String")
	}
	wantMap := map[string]string{"Education-Num": "education_num", "n": "3"}
	if got := o.StringMap("header_map"); !reflect.DeepEqual(got, wantMap) {
		t.Fatalf("StringMap=%v", got)
	}
	if got := o.StringSlice("columns"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("StringSlice=%v", got)
	}
}

func TestOptions_NilIsSafe(t *testing.T) {
	var o Options
	if o.Bool("x", true) != true || o.Int("x", 2) != 2 || o.StringMap("x") != nil {
		t.Fatal("nil Options must return defaults")
	}
	if _, ok := o.Any("x"); ok {
		t.Fatal("Any on nil")
	}
}
