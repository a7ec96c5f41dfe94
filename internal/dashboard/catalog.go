// ABOUTME: Fixed icon and color choices for app tiles plus the default app list
// ABOUTME: Unknown icon keys fall back to the book glyph; colors pass through as-is

package dashboard

// Option is one selectable value in the edit form
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Defaults for a new draft
const (
	DefaultIcon  = "book"
	DefaultColor = "bg-red-400"
	DraftURL     = "https://"
)

// IconOptions lists the icon keys in picker order
var IconOptions = []Option{
	{Label: "ほん", Value: "book"},
	{Label: "けいさん", Value: "calc"},
	{Label: "え", Value: "art"},
	{Label: "げーむ", Value: "game"},
	{Label: "おんがく", Value: "music"},
	{Label: "どうが", Value: "video"},
	{Label: "ちきゅう", Value: "world"},
	{Label: "にこにこ", Value: "smile"},
}

// ColorOptions lists the tile colors in picker order
var ColorOptions = []Option{
	{Label: "あか", Value: "bg-red-400"},
	{Label: "あお", Value: "bg-blue-400"},
	{Label: "きいろ", Value: "bg-yellow-400"},
	{Label: "みどり", Value: "bg-green-400"},
	{Label: "むらさき", Value: "bg-purple-400"},
	{Label: "ぴんく", Value: "bg-pink-400"},
	{Label: "おれんじ", Value: "bg-orange-400"},
}

var iconGlyphs = map[string]string{
	"book":  "📖",
	"calc":  "🧮",
	"art":   "🎨",
	"game":  "🎮",
	"music": "🎵",
	"video": "🎬",
	"world": "🌏",
	"smile": "😊",
}

// IconGlyph returns the glyph drawn for an icon key. Unrecognized keys get
// the default icon's glyph.
func IconGlyph(key string) string {
	if g, ok := iconGlyphs[key]; ok {
		return g
	}
	return iconGlyphs[DefaultIcon]
}

// KnownIcon reports whether key is one of IconOptions.
func KnownIcon(key string) bool {
	_, ok := iconGlyphs[key]
	return ok
}

// ColorLabel returns the label for a color value, or "" when unknown.
func ColorLabel(value string) string {
	for _, c := range ColorOptions {
		if c.Value == value {
			return c.Label
		}
	}
	return ""
}

// DefaultApps returns the entries inserted on first run. CreatedAt is left
// zero; the seeding routine stamps each one.
func DefaultApps() []AppEntry {
	return []AppEntry{
		{Name: "こくご", URL: "https://www.nhk.or.jp/school/kokugo/", Icon: "book", Color: "bg-red-400"},
		{Name: "さんすう", URL: "https://www.nhk.or.jp/school/sansuu/", Icon: "calc", Color: "bg-blue-400"},
		{Name: "おえかき", URL: "https://quickdraw.withgoogle.com/", Icon: "art", Color: "bg-yellow-400"},
		{Name: "タイピング", URL: "https://typing.twi1.me/", Icon: "game", Color: "bg-purple-400"},
	}
}
