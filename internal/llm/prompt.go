package llm

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the model to answer with the enrichment object only
const SystemPrompt = `אתה מנתח דוחות אפס של פרויקטי התחדשות עירונית בישראל.
החזר אך ורק אובייקט JSON תקין, ללא טקסט נוסף, עם המפתחות:
"new_floors_count" (מספר שלם), "new_residential_units" (מספר שלם),
"additions_list_he" (מערך מחרוזות בעברית), "summary_he" (מחרוזת בעברית).
אם נתון אינו מופיע במסמך, החזר 0 למספרים, מערך ריק או מחרוזת ריקה.`

// BuildPrompt wraps the document text, cut to maxChars runes (0 = no cap)
func BuildPrompt(context string, maxChars int) string {
	context = Truncate(context, maxChars)
	return fmt.Sprintf(`להלן טקסט שחולץ מדוח אפס:
"""
%s
"""
כמה קומות חדשות מתווספות? כמה יחידות דיור חדשות? אילו תוספות מתוכננות?
סכם את עיקרי הפרויקט בשלושה משפטים לכל היותר.`, strings.TrimSpace(context))
}

// Truncate cuts s to at most n runes; n <= 0 leaves s unchanged
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
