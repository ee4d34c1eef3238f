// Package i18n translates dashboard labels. Templates use %name% placeholders,
// e.g. "Page %page% of %maxPage%".
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var catalogs = map[language.Tag]map[string]string{
	language.English: {},
	language.Vietnamese: {
		"#":                        "#",
		"Name":                     "Tên",
		"Address":                  "Địa chỉ",
		"Balance":                  "Số dư",
		"Action":                   "Thao tác",
		"Create":                   "Tạo",
		"Create Address":           "Tạo địa chỉ",
		"Update":                   "Cập nhật",
		"Delete":                   "Xóa",
		"Page %page% of %maxPage%": "Trang %page% / %maxPage%",

		"Update is disabled":                           "Cập nhật đang bị tắt",
		"Delete: nothing to do":                        "Xóa: không có gì để làm",
		"Full address copied to clipboard!":            "Đã sao chép địa chỉ đầy đủ!",
		"Failed to copy to clipboard":                  "Không thể sao chép vào bộ nhớ tạm",
		"Explorer URL not configured for this chain":   "Chưa cấu hình trình khám phá cho chuỗi này",
		"Failed to open browser":                       "Không thể mở trình duyệt",
		"Opened in browser":                            "Đã mở trong trình duyệt",
		"Refreshing data...":                           "Đang làm mới dữ liệu...",
		"Address form submitted (roster is read-only)": "Đã gửi biểu mẫu địa chỉ (danh sách chỉ đọc)",
	},
}

// English comes first so it is the matcher fallback.
var supported = []language.Tag{language.English, language.Vietnamese}

var matcher = language.NewMatcher(supported)

// Translator maps label keys to localized strings.
type Translator struct {
	tag     language.Tag
	catalog map[string]string
}

// New picks the closest supported catalog for locale. Unknown or malformed
// locales fall back to English.
func New(locale string) *Translator {
	tag, _, _ := matcher.Match(language.Make(locale))
	base, _ := tag.Base()
	for t, c := range catalogs {
		if b, _ := t.Base(); b == base {
			return &Translator{tag: t, catalog: c}
		}
	}
	return &Translator{tag: language.English, catalog: catalogs[language.English]}
}

// Tag is the language used for number formatting.
func (t *Translator) Tag() language.Tag { return t.tag }

// T translates key and substitutes %name% placeholders from params.
// Missing keys are returned untranslated.
func (t *Translator) T(key string, params map[string]any) string {
	s, ok := t.catalog[key]
	if !ok {
		s = key
	}
	for k, v := range params {
		s = strings.ReplaceAll(s, "%"+k+"%", fmt.Sprint(v))
	}
	return s
}
