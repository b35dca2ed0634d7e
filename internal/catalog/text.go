package catalog

// Ellipsis marks text that was shortened by Truncate.
const Ellipsis = "..."

// Display lengths used by listing cards.
const (
	CardTitleLength       = 60
	CardDescriptionLength = 100
)

// Truncate shortens text to maxLength characters followed by Ellipsis. Text that
// already fits is returned unchanged and empty text stays empty.
func Truncate(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	if maxLength <= 0 {
		return Ellipsis
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + Ellipsis
}
