package letters

import (
	"fmt"
	"strings"

	"jobpipe-engine/internal/domain"
)

var (
	frenchWords = []string{"le", "la", "les", "et", "pour", "des", "une", "dans", "est", "que",
		"alternance", "stage", "poste", "profil", "compétences", "mission"}
	englishWords = []string{"the", "and", "for", "with", "are", "you", "will", "job", "position",
		"skills", "requirements", "experience", "work"}
	frenchPlaces = []string{"france", "paris", "lyon", "marseille", "bordeaux"}

	techKeywords = []string{
		"python", "sql", "machine learning", "deep learning", "tensorflow",
		"pytorch", "scikit-learn", "pandas", "numpy", "data analysis", "statistics",
		"big data", "spark", "hadoop", "aws", "azure", "gcp", "docker", "kubernetes",
		"nlp", "computer vision", "reinforcement learning", "time series",
		"quantitative", "finance", "trading", "risk", "portfolio", "derivatives",
	}
)

// DetectLanguage returns "fr" when French word hits (plus 3 for a French
// city in the location) outnumber English ones, otherwise "en".
func DetectLanguage(p domain.Posting) string {
	text := " " + strings.ToLower(strings.Join(strings.Fields(p.Title+" "+p.Description+" "+p.Requirements), " ")) + " "
	fr, en := 0, 0
	for _, w := range frenchWords {
		if strings.Contains(text, " "+w+" ") {
			fr++
		}
	}
	for _, w := range englishWords {
		if strings.Contains(text, " "+w+" ") {
			en++
		}
	}
	loc := strings.ToLower(p.Location)
	for _, c := range frenchPlaces {
		if strings.Contains(loc, c) {
			fr += 3
			break
		}
	}
	if fr > en {
		return "fr"
	}
	return "en"
}

// ExtractKeywords lists known technical terms present in the posting, at
// most 15.
func ExtractKeywords(p domain.Posting) []string {
	text := strings.ToLower(p.Title + " " + p.Description + " " + p.Requirements)
	var out []string
	for _, kw := range techKeywords {
		if strings.Contains(text, kw) {
			out = append(out, kw)
			if len(out) == 15 {
				break
			}
		}
	}
	return out
}

func skillsParagraph(skills, keywords []string, fr bool) string {
	top := skills
	if len(top) > 5 {
		top = top[:5]
	}
	var matched []string
	for _, s := range top {
		ls := strings.ToLower(s)
		for _, kw := range keywords {
			if strings.Contains(kw, ls) || strings.Contains(ls, kw) {
				matched = append(matched, s)
				break
			}
		}
	}
	if len(matched) == 0 {
		matched = skills
		if len(matched) > 3 {
			matched = matched[:3]
		}
	}

	if len(matched) == 0 {
		return pick(fr,
			"Ma formation m'a permis d'acquérir une solide base technique et une méthodologie rigoureuse pour aborder les problématiques data.",
			"My academic background has given me a solid technical foundation and a rigorous method for tackling data problems.")
	}
	list := joinList(matched, pick(fr, "et", "and"))
	if fr {
		return fmt.Sprintf("Au cours de ma formation, j'ai développé des compétences solides en %s. Je maîtrise également les outils essentiels pour ce poste.", list)
	}
	return fmt.Sprintf("Throughout my studies, I have developed strong skills in %s. I am also comfortable with the essential tools this position requires.", list)
}

func joinList(items []string, and string) string {
	if len(items) == 1 {
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " " + and + " " + items[len(items)-1]
}

func motivationParagraph(title string, fr bool) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "quant"):
		return pick(fr,
			"Passionné par la finance quantitative et les mathématiques appliquées, je suis particulièrement intéressé par l'utilisation des modèles statistiques et du machine learning pour résoudre des problématiques financières complexes.",
			"Passionate about quantitative finance and applied mathematics, I am particularly interested in using statistical models and machine learning to solve complex financial problems.")
	case strings.Contains(t, "deep learning"), strings.Contains(t, "nlp"):
		return pick(fr,
			"Fasciné par les avancées récentes en intelligence artificielle, je souhaite approfondir mes connaissances en deep learning et contribuer à des projets innovants dans ce domaine.",
			"Fascinated by recent advances in artificial intelligence, I want to deepen my knowledge of deep learning and contribute to innovative projects in this field.")
	default:
		return pick(fr,
			"Passionné par l'analyse de données et le machine learning, je suis motivé à l'idée de mettre mes compétences au service de projets concrets et de continuer à apprendre auprès de professionnels expérimentés.",
			"Passionate about data analysis and machine learning, I am motivated to apply my skills to real projects and keep learning from experienced professionals.")
	}
}

func companyParagraph(company, description string, fr bool) string {
	d := strings.ToLower(description)
	var values []string
	if strings.Contains(d, "innovation") {
		values = append(values, "innovation")
	}
	if strings.Contains(d, "research") || strings.Contains(d, "recherche") {
		values = append(values, pick(fr, "la recherche", "research"))
	}
	if strings.Contains(d, "team") || strings.Contains(d, "équipe") {
		values = append(values, pick(fr, "le travail d'équipe", "teamwork"))
	}

	if len(values) > 0 {
		list := strings.Join(values, ", ")
		if fr {
			return fmt.Sprintf("Ce qui m'attire particulièrement chez %s, c'est votre engagement envers %s. Je suis convaincu que mon profil et ma motivation correspondront à vos attentes.", company, list)
		}
		return fmt.Sprintf("What attracts me to %s is your commitment to %s. I am confident that my profile and motivation will meet your expectations.", company, list)
	}
	if fr {
		return fmt.Sprintf("Je suis particulièrement intéressé par l'opportunité de rejoindre %s et de contribuer à vos projets. Je suis convaincu que mon profil et ma motivation correspondront à vos attentes.", company)
	}
	return fmt.Sprintf("I am particularly interested in the opportunity to join %s and contribute to your projects. I am confident that my profile and motivation will meet your expectations.", company)
}
