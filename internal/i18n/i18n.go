// Package i18n holds the user-facing message catalog for the grid and the
// inventory API in Japanese and English. Japanese is the default and
// stands in for every unsupported locale.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyException         = "msg.error.Exception"
	KeyPrimaryKeyDup     = "msg.error.primaryKeyDuplicated"
	KeyFieldWrongSize    = "msg.error.fieldWrongSize"
	KeyRowNotFound       = "msg.warning.rowNotFound"
	KeyUpdateFailed      = "msg.error.updateFailed"
	KeyUpdateSuccess     = "msg.success.updateSuccess"
	KeyCreateSuccess     = "msg.success.createSuccess"
	KeyImportSuccess     = "msg.success.importSuccess"
	KeyShowTotal         = "table.showTotal"
	KeySubmitInFlight    = "msg.warning.submitInFlight"
	KeyUnsupportedFormat = "msg.error.unsupportedFormat"
	KeyNoRows            = "msg.error.noRows"
)

// Supported locales, default first.
var Supported = []language.Tag{language.Japanese, language.English}

var matcher = language.NewMatcher(Supported)

type entry struct {
	key string
	ja  string
	en  string
}

// Detail-bearing messages take the row detail as their only argument.
var entries = []entry{
	{KeyException, "システムエラーが発生しました: %s", "An unexpected error occurred: %s"},
	{KeyPrimaryKeyDup, "キーが重複しています: %s", "Duplicate key: %s"},
	{KeyFieldWrongSize, "入力値が長すぎます: %s", "A value is too long: %s"},
	{KeyRowNotFound, "更新対象のデータが見つかりません: %s", "The row to update no longer exists: %s"},
	{KeyUpdateFailed, "更新に失敗しました", "Update failed"},
	{KeyUpdateSuccess, "更新しました", "Update succeeded"},
	{KeyCreateSuccess, "登録しました", "Record created"},
	{KeyImportSuccess, "%d 件を取り込みました", "Imported %d rows"},
	{KeyShowTotal, "%[1]d-%[2]d 件 / 全 %[3]d 件", "%[1]d-%[2]d of %[3]d items"},
	{KeySubmitInFlight, "更新処理中です", "An update is already in progress"},
	{KeyUnsupportedFormat, "対応していないファイル形式です", "Unsupported file format"},
	{KeyNoRows, "取り込むデータがありません", "The file contains no rows"},
}

// Catalog is the built message catalog.
var Catalog catalog.Catalog = build()

func build() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.Japanese))
	for _, e := range entries {
		if err := b.SetString(language.Japanese, e.key, e.ja); err != nil {
			panic("i18n: " + e.key + ": " + err.Error())
		}
		if err := b.SetString(language.English, e.key, e.en); err != nil {
			panic("i18n: " + e.key + ": " + err.Error())
		}
	}
	return b
}

// ParseLocale matches an Accept-Language header or a locale name against
// the supported set. Anything unparseable or unsupported yields Japanese.
func ParseLocale(s string) language.Tag {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Japanese
	}
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return language.Japanese
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.Japanese
	}
	return Supported[idx]
}

// Printer renders messages for one locale. A Printer is not safe for
// concurrent use; create one per request.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a printer for tag.
func NewPrinter(tag language.Tag) *Printer {
	return &Printer{p: message.NewPrinter(tag, message.Catalog(Catalog))}
}

// Sprintf renders key with args.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Translate renders a detail-bearing key. It satisfies grid.Translator.
func (p *Printer) Translate(key, detail string) string {
	return p.p.Sprintf(key, detail)
}

// ShowTotal renders the pagination summary.
func (p *Printer) ShowTotal(rangeStart, rangeEnd, total int) string {
	return p.p.Sprintf(KeyShowTotal, rangeStart, rangeEnd, total)
}
