package htmlpage

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// harvestScriptGlobals runs the page's inline scripts in a sandboxed JS
// interpreter and collects the globals they define. Pages often park
// structured data in window-scoped variables that never appear in markup.
func harvestScriptGlobals(raw []byte, pageURL string) map[string]string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse HTML for JS execution")
		return nil
	}

	vm := goja.New()

	// Mock basic browser environment
	// This is very limited, just enough to capture data assignments
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]interface{}{
		"location": map[string]interface{}{
			"href": pageURL,
		},
	})
	vm.Set("location", map[string]interface{}{
		"href": pageURL,
	})
	vm.Set("console", map[string]interface{}{
		"log": func(call goja.FunctionCall) goja.Value {
			return nil
		},
		"error": func(call goja.FunctionCall) goja.Value {
			return nil
		},
	})

	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		// Skip external scripts
		if _, exists := sel.Attr("src"); exists {
			return
		}

		script := sel.Text()
		if script == "" {
			return
		}
		// Most scripts fail on the missing DOM; assignments made before
		// the failure still land on the global object.
		_, _ = vm.RunString(script)
	})

	globals := make(map[string]string)
	for _, key := range vm.GlobalObject().Keys() {
		if isStandardGlobal(key) {
			continue
		}
		val := vm.Get(key)
		if val == nil {
			continue
		}
		if exported := val.Export(); exported != nil {
			globals["js:"+key] = fmt.Sprintf("%v", exported)
		}
	}
	if len(globals) == 0 {
		return nil
	}
	return globals
}

func isStandardGlobal(key string) bool {
	standards := map[string]bool{
		"window": true, "self": true, "document": true, "location": true, "console": true,
		"Object": true, "Array": true, "String": true, "Number": true, "Boolean": true,
		"Date": true, "Math": true, "JSON": true, "RegExp": true, "Error": true,
		"Function": true, "parseInt": true, "parseFloat": true, "isNaN": true,
		"isFinite": true, "encodeURI": true, "decodeURI": true, "encodeURIComponent": true,
		"decodeURIComponent": true, "undefined": true, "NaN": true, "Infinity": true,
	}
	return standards[key]
}
