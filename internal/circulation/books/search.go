package books

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SearchKey はタイトル・著者から検索用キーを作る。
// 全角英数は NFKC で半角に、アクセント記号は除去、大文字小文字は畳み込み、空白は1つに詰める。
// 書き込み時と検索時で同じ関数を通すこと。
func SearchKey(parts ...string) string {
	s := norm.NFKC.String(strings.Join(parts, " "))

	// Caser / Transformer は並行利用不可なので毎回作る
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(strip, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern は部分一致用の LIKE パターン（ワイルドカードはエスケープ済み）
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(SearchKey(q)) + "%"
}
