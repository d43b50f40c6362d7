package headers

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	in := []string{"User-Agent: Bot", "Accept: text/html", "X-Token:  abc ", "BadHeader"}
	out := Parse(in)
	expected := map[string]string{
		"User-Agent": "Bot",
		"Accept":     "text/html",
		"X-Token":    "abc",
	}
	if !reflect.DeepEqual(out, expected) {
		t.Fatalf("unexpected parse result: %#v", out)
	}
}
