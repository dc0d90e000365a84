package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// translations holds every user-facing string keyed by message key and
// language. English is the fallback for any missing language.
var translations = map[string]map[string]string{
	"found_products": {
		"en": "Found {count} products matching your query.",
		"cs": "Nalezeno {count} produktů odpovídajících vašemu dotazu.",
	},
	"choose_option": {
		"en": "Choose an option:",
		"cs": "Vyberte možnost:",
	},
	"no_products": {
		"en": "Sorry, could not find any products.",
		"cs": "Omlouváme se, nenašli jsme žádné produkty.",
	},
	"product_list_title": {
		"en": "LEVA Houses",
		"cs": "LEVA Domy",
	},
	"order_product": {
		"en": "Order {product}",
		"cs": "Objednat {product}",
	},
	"no_product_with_id": {
		"en": "Sorry, no product found with ID {id}.",
		"cs": "Omlouváme se, žádný produkt s ID {id} nebyl nalezen.",
	},
	"error_fetching_product_details": {
		"en": "Sorry, there was an error fetching the product details.",
		"cs": "Omlouváme se, došlo k chybě při načítání detailů produktu.",
	},
	"error_browsing_products": {
		"en": "Sorry, there was an error browsing products.",
		"cs": "Omlouváme se, došlo k chybě při procházení produktů.",
	},
	"invalid_input": {
		"en": "Sorry, I didn't understand that. Please try again.",
		"cs": "Omlouváme se, nerozuměli jsme. Zkuste to prosím znovu.",
	},
	"try_again": {
		"en": "Something went wrong. Please try again later.",
		"cs": "Něco se pokazilo. Zkuste to prosím později.",
	},
	"confirm_order": {
		"en": "Your order for {product} has been placed!",
		"cs": "Vaše objednávka na {product} byla přijata!",
	},
	"product_details": {
		"en": "Product Details",
		"cs": "Detaily produktu",
	},
	"welcome_message": {
		"en": "Welcome to LEVA! How can I assist you today?",
		"cs": "Vítejte v LEVA! Jak vám mohu dnes pomoci?",
	},
	"goodbye_message": {
		"en": "Thank you for visiting LEVA. Have a great day!",
		"cs": "Děkujeme za návštěvu LEVA. Přejeme hezký den!",
	},
	"help_message": {
		"en": "You can search for houses, browse all products, or ask for details about a specific product.",
		"cs": "Můžete hledat domy, procházet všechny produkty nebo požádat o detaily konkrétního produktu.",
	},
	"loading_message": {
		"en": "Searching, please wait...",
		"cs": "Hledám, prosím čekejte...",
	},
	"unexpected_error": {
		"en": "An unexpected error occurred. Please try again later.",
		"cs": "Došlo k neočekávané chybě. Zkuste to prosím později.",
	},
}

// Translator resolves user-facing strings by language and guesses the
// customer's language from message text.
type Translator struct {
	defaultLanguage string
}

func NewTranslator(defaultLanguage string) *Translator {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Translator{defaultLanguage: defaultLanguage}
}

// Get returns the translation for key in lang, falling back to English.
// Placeholders like {count} are filled from args.
func (t *Translator) Get(key, lang string, args map[string]string) string {
	byLang, ok := translations[key]
	if !ok {
		return key
	}
	text, ok := byLang[lang]
	if !ok || text == "" {
		text = byLang["en"]
	}
	for name, value := range args {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

const czechDiacritics = "áčďéěíňóřšťúůýž"

var czechWords = map[string]bool{
	"ahoj":    true,
	"dobry":   true,
	"prosim":  true,
	"dekuji":  true,
	"chci":    true,
	"kolik":   true,
	"domy":    true,
	"dum":     true,
	"bazen":   true,
	"nabidka": true,
}

// Detect guesses the language of a customer message. Czech is recognized
// by its diacritics or a few common words written without them; anything
// else resolves to the configured default.
func (t *Translator) Detect(text string) string {
	lowered := strings.ToLower(text)
	if strings.ContainsAny(lowered, czechDiacritics) {
		return "cs"
	}
	for _, word := range strings.Fields(lowered) {
		word = strings.Trim(word, ".,!?;:\"'")
		if czechWords[word] {
			return "cs"
		}
	}
	return t.defaultLanguage
}

// TranslateText translates text through a LibreTranslate-compatible
// endpoint. Any failure returns the original text unchanged; localization
// must never break the caller.
func TranslateText(ctx context.Context, apiURL, text, targetLang string) string {
	if apiURL == "" || text == "" || targetLang == "" || targetLang == "en" {
		return text
	}

	reqBody := map[string]string{
		"q":      text,
		"source": "auto",
		"target": targetLang,
		"format": "text",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return text
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return text
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("Translation request failed, keeping original text", "error", err)
		return text
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		slog.Warn("Translation failed, keeping original text", "status", resp.StatusCode)
		return text
	}

	var result struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.TranslatedText == "" {
		return text
	}

	return result.TranslatedText
}
