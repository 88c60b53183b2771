package flow

import (
	"fmt"
	"strings"

	"github.com/hamavrikan/leadbot/internal/ident"
	"github.com/hamavrikan/leadbot/internal/models"
)

// Hebrew templates sent to contacts. The business fronts as "המבריקן", so the
// copy stays verbatim and in Hebrew.
const (
	msgWelcome = `✨ *ברוכים הבאים להמבריקן!* ✨

🧹 שירותי ניקוי מקצועיים לספות, שטיחים, מזרנים, כורסאות וריפודים.

נשמח לעזור ולתת לכם הצעת מחיר מדויקת 💰

📍 *מהיכן אתם?*
_(אנחנו נותנים שירות בחיפה, הקריון והצפון בלבד)_`

	msgItemSelection = `👍 מעולה!

🛋️ *איזה פריט תרצו לנקות?*

1️⃣ ספה
2️⃣ מזרן
3️⃣ שטיח
4️⃣ כמה פריטים יחד

_(שלחו את מספר האפשרות או שם הפריט)_`

	msgMattressType = `🛏️ *איזה סוג מזרן יש לכם?*

1️⃣ יחיד
2️⃣ זוגי
3️⃣ קינג סייז`

	msgMattressBothSides = `🔄 *האם יש צורך בניקוי משני הצדדים?*

1️⃣ כן ✅
2️⃣ לא ❌`

	msgMattressStains = `🔍 *האם יש כתמים קשים וריח לא טוב?*
_(שתן, דם וכדומה)_

1️⃣ כן ✅
2️⃣ לא ❌`

	msgMattressAge = `⏰ *כמה זמן המזרן בשימוש?*

_(לדוגמה: שנה, 3 שנים, חדש)_`

	msgMattressPhoto = `📸 *אנא שלחו תמונה של המזרן*

לקבלת אבחון והצעת מחיר מדויקת 💰

_(או שלחו 0 לדילוג)_`

	msgSofaType = `🛋️ *איזה סוג ספה יש לכם?*

1️⃣ ספה סטנדרטית
2️⃣ שזלונג "ר"
3️⃣ מערכת ישיבה גדולה
4️⃣ ספה מלבנית`

	msgSofaPhoto = `📸 *אנא שלחו תמונה של הספה*

לקבלת אבחון והצעת מחיר מדויקת 💰

💡 _חשוב: הצעת מחיר מבוססת על גודל הספה, מצב הלכלוך והכתמים, והאם הכריות נשלפות או קבועות_

_(או שלחו 0 לדילוג)_`

	msgCarpetType = `🧶 *איזה סוג שטיח יש לכם?*

1️⃣ שטיח שאגי
2️⃣ שטיח סינטתי
3️⃣ שטיח וינטג׳ / מודרני
4️⃣ שטיח עבודת יד (צמר / כותנה)
5️⃣ שטיח מקיר לקיר`

	msgCarpetSize = `📏 *מה גודל השטיח?*

_(לדוגמה: 2x3 מטר, קטן, גדול)_`

	msgCarpetPhoto = `📸 *אנא שלחו תמונה של השטיח*

לקבלת אבחון והצעת מחיר מדויקת 💰

_(או שלחו 0 לדילוג)_`

	msgMultipleItems = `📦 *אילו פריטים תרצו לנקות?*

1️⃣ ספה 🛋️
2️⃣ מזרן 🛏️
3️⃣ שטיח 🧶

_(שלחו מספרים מופרדים בפסיק, למשל: 1,2)_`

	msgThankYou = `🎉 *תודה רבה!*

נציג יחזור אליכם בהקדם עם הצעת מחיר 💰

_המבריקן - ניקיון שמבריק!_ ✨`

	msgNotUnderstood = `🤔 לא הבנתי את התשובה

אנא בחרו אחת מהאפשרויות`
)

// photoRePrompt re-asks the photo question when a text without media arrives
// in a photo state.
func photoRePrompt(item string) string {
	return fmt.Sprintf("📸 אנא שלחו תמונה של ה%s\n\n_(או שלחו 0 לדילוג)_", item)
}

// msgContextError renders a context-aware error: what was not understood,
// the current question, and a hint.
func msgContextError(userInput, question, example string) string {
	return fmt.Sprintf("🤔 לא הבנתי \"%s\"\n\n❓ *%s*\n\n💡 _%s_", userInput, question, example)
}

// msgItemTransition announces the move to the next item of a multi-item flow.
func msgItemTransition(fromItem, toItem string) string {
	return fmt.Sprintf("✅ סיימנו עם ה%s!\n\nעכשיו נמשיך ל%s 👇", fromItem, toItem)
}

// msgStartingWith announces the first item of a multi-item flow.
func msgStartingWith(item string) string {
	return fmt.Sprintf("👍 מעולה! נתחיל עם %s", item)
}

// msgPhotoForward captions a photo forwarded to the operator.
func msgPhotoForward(name string) string {
	return fmt.Sprintf("תמונה מ-%s", name)
}

// ownerNotification renders the operator summary for a finalized lead.
func ownerNotification(lead *models.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *ליד חדש!*\n\n")
	fmt.Fprintf(&b, "👤 *שם:* %s\n", lead.Name)
	fmt.Fprintf(&b, "📞 *טלפון:* %s\n", ident.FormatLocal(lead.Phone))
	fmt.Fprintf(&b, "📍 *מיקום:* %s\n", lead.Location)
	fmt.Fprintf(&b, "🛋️ *פריט:* %s\n\n", lead.ItemType)
	fmt.Fprintf(&b, "📋 *פרטים נוספים:*\n%s", formatDetails(lead.ItemDetails))
	if len(lead.Photos) > 0 {
		fmt.Fprintf(&b, "\n\n📸 *תמונות:* %d", len(lead.Photos))
	}
	return b.String()
}

// formatDetails renders the item answers for the operator notification, one
// block per item for composite leads.
func formatDetails(details models.ItemDetails) string {
	if len(details.Items) > 0 {
		blocks := make([]string, 0, len(details.Items))
		for i, item := range details.Items {
			lines := []string{fmt.Sprintf("*פריט %d:* %s", i+1, item.Type)}
			if item.Size != "" {
				lines = append(lines, fmt.Sprintf("  📏 גודל: %s", item.Size))
			}
			if item.BothSides != "" {
				lines = append(lines, fmt.Sprintf("  🔄 שני צדדים: %s", item.BothSides))
			}
			if item.Stains != "" {
				lines = append(lines, fmt.Sprintf("  🔍 כתמים: %s", item.Stains))
			}
			if item.Age != "" {
				lines = append(lines, fmt.Sprintf("  ⏰ זמן שימוש: %s", item.Age))
			}
			blocks = append(blocks, strings.Join(lines, "\n"))
		}
		return strings.Join(blocks, "\n\n")
	}

	var lines []string
	if details.Type != "" {
		lines = append(lines, fmt.Sprintf("📌 סוג: %s", details.Type))
	}
	if details.Size != "" {
		lines = append(lines, fmt.Sprintf("📏 גודל: %s", details.Size))
	}
	if details.BothSides != "" {
		lines = append(lines, fmt.Sprintf("🔄 שני צדדים: %s", details.BothSides))
	}
	if details.Stains != "" {
		lines = append(lines, fmt.Sprintf("🔍 כתמים: %s", details.Stains))
	}
	if details.Age != "" {
		lines = append(lines, fmt.Sprintf("⏰ זמן שימוש: %s", details.Age))
	}
	if len(lines) == 0 {
		return "_אין_"
	}
	return strings.Join(lines, "\n")
}
