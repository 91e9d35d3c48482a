package rag

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadProductsCSV reads the product catalog into documents. Field values
// are messy in real exports, so numeric parsing is tolerant and missing
// columns are skipped rather than fatal.
func LoadProductsCSV(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	get := func(row []string, key string) string {
		i, ok := col[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var docs []Document
	idx := 0
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		prodID := get(row, "model_number")
		if prodID == "" {
			prodID = get(row, "seller_id")
		}
		if prodID == "" {
			if title := get(row, "title"); title != "" {
				prodID = truncate(title, 60)
			}
		}
		if prodID == "" {
			prodID = fmt.Sprintf("prod_%d", idx)
		}

		content := buildProductContent(func(key string) string { return get(row, key) })
		docs = append(docs, Document{
			Content: content,
			Metadata: map[string]string{
				"source":       "products",
				"prod_id":      prodID,
				"title":        get(row, "title"),
				"brand":        get(row, "brand"),
				"final_price":  parseNumber(get(row, "final_price")),
				"currency":     get(row, "currency"),
				"availability": get(row, "availability"),
				"url":          get(row, "url"),
			},
		})
		idx++
	}
	return docs, nil
}

// buildProductContent composes a readable text block for embedding,
// keeping the fields that matter for answering shopping questions.
func buildProductContent(get func(string) string) string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}

	add("Title", get("title"))
	add("Brand", get("brand"))
	add("Description", get("description"))
	if price := parseNumber(get("final_price")); price != "" {
		parts = append(parts, "Price: "+price+" "+get("currency"))
	} else if price := parseNumber(get("initial_price")); price != "" {
		parts = append(parts, "Price: "+price+" "+get("currency"))
	}
	add("Availability", get("availability"))
	add("Rating", parseNumber(get("rating")))
	add("Reviews", parseNumber(get("reviews_count")))
	if cats := parseListField(get("categories")); len(cats) > 0 {
		parts = append(parts, "Categories: "+strings.Join(cats, ", "))
	}
	add("Dimensions", get("product_dimensions"))
	add("Delivery info", get("delivery"))
	if review := get("top_review"); review != "" {
		parts = append(parts, "Top review: "+truncate(review, 1500))
	}
	add("URL", get("url"))
	add("Buybox seller", get("buybox_seller"))

	return strings.Join(parts, "\n\n")
}

type faqFile struct {
	Questions []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"questions"`
}

// LoadFAQsJSON reads policy/FAQ entries into Q/A documents. A missing
// file is not an error; the catalog alone still makes a usable index.
func LoadFAQsJSON(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var file faqFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var docs []Document
	for i, qa := range file.Questions {
		q := strings.TrimSpace(qa.Question)
		a := strings.TrimSpace(qa.Answer)
		if q == "" && a == "" {
			continue
		}
		docs = append(docs, Document{
			Content: "Q: " + q + "\nA: " + a,
			Metadata: map[string]string{
				"source":   "faqs",
				"index":    strconv.Itoa(i),
				"question": q,
			},
		})
	}
	return docs, nil
}

// parseNumber strips currency symbols and separators, returning a clean
// numeric string or the raw value when it won't parse.
func parseNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	cleaned := strings.NewReplacer(`"`, "", "'", "", "₹", "", "$", "", ",", "").Replace(s)
	if _, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return cleaned
	}
	return s
}

// parseListField accepts JSON-array, pipe- or comma-separated values.
func parseListField(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			for i := range arr {
				arr[i] = strings.TrimSpace(arr[i])
			}
			return arr
		}
	}
	sep := ","
	if strings.Contains(s, "|") {
		sep = "|"
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + " ...[truncated]"
}
