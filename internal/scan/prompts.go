package scan

import (
	"fmt"
	"strings"

	"marsad/internal/audit"
)

const lawSystemPrompt = `أنت مدقق جودة نصوص قانونية خبير بالتشريعات العربية. ستتلقى مجموعة من نصوص القوانين. افحص كل نص بحثًا عن مشاكل جودة: صياغة ناقصة أو مبتورة، أخطاء ترقيم أو ترتيب، نص مكرر، عبارات لا معنى لها ناتجة عن مسح ضوئي، تواريخ هجرية مشوهة، أو أي خلل يؤثر على موثوقية النشر الرسمي.

أعد النتيجة حصريًا كمصفوفة JSON (قد تكون فارغة) من عناصر بهذه الحقول:
{"entity_id": "معرّف القانون كما ورد", "severity": "critical|high|medium|low", "code": "رمز قصير بالإنجليزية", "message": "وصف المشكلة بالعربية", "location": "موضع المشكلة إن وُجد", "suggestion": "مقترح الإصلاح", "pattern": "نمط نصي قابل للبحث إن وُجد"}

لا تضف أي نص خارج المصفوفة.`

const judgmentSystemPrompt = `أنت مدقق جودة نصوص قضائية خبير بالأحكام العربية. ستتلقى مجموعة من نصوص أحكام قضائية. افحص كل نص بحثًا عن مشاكل جودة: نص مبتور أو ناقص، بقايا مسح ضوئي (حروف لاتينية وسط النص، تطويلات، فواصل صفحات)، تواريخ مشوهة، أسماء محاكم أو أطراف غير مكتملة، أو أي خلل يؤثر على قابلية النشر.

أعد النتيجة حصريًا كمصفوفة JSON (قد تكون فارغة) من عناصر بهذه الحقول:
{"entity_id": "معرّف الحكم كما ورد", "severity": "critical|high|medium|low", "code": "رمز قصير بالإنجليزية", "message": "وصف المشكلة بالعربية", "location": "موضع المشكلة إن وُجد", "suggestion": "مقترح الإصلاح", "pattern": "نمط نصي قابل للبحث إن وُجد"}

لا تضف أي نص خارج المصفوفة.`

// buildBatchPrompt renders one batch of entities plus the signals earlier
// stages accumulated, so the model hunts for damage already seen elsewhere
// in the corpus.
func buildBatchPrompt(batch []aiItem, shared *audit.Context) string {
	var sb strings.Builder

	if len(shared.OCRPatterns) > 0 {
		fmt.Fprintf(&sb, "أنماط عيوب مسح ضوئي رُصدت سابقًا في هذا الفحص: %s\n",
			strings.Join(shared.OCRPatterns, "، "))
	}
	if len(shared.AIPatterns) > 0 {
		fmt.Fprintf(&sb, "أنماط عيوب أبلغت عنها دفعات سابقة: %s\n",
			strings.Join(shared.AIPatterns, "، "))
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString("النصوص المطلوب فحصها:\n")
	for i, item := range batch {
		fmt.Fprintf(&sb, "\n--- نص %d ---\nentity_id: %s\n", i+1, item.ID)
		if item.Name != "" {
			fmt.Fprintf(&sb, "الاسم: %s\n", item.Name)
		}
		sb.WriteString(item.Excerpt)
		sb.WriteString("\n")
	}
	return sb.String()
}
