package gazetteer

// genericStopwords are common English words that never start or end a fuzzy window.
var genericStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"down", "during", "each", "few", "for", "from", "further", "had", "has", "have",
	"having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "itself", "just", "me", "more",
	"most", "my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once",
	"only", "or", "other", "our", "ours", "ourselves", "out", "over", "own", "same",
	"she", "should", "so", "some", "such", "than", "that", "the", "their", "theirs",
	"them", "themselves", "then", "there", "these", "they", "this", "those", "through",
	"to", "too", "under", "until", "up", "very", "was", "we", "were", "what", "when",
	"where", "which", "while", "who", "whom", "why", "will", "with", "would", "you",
	"your", "yours", "yourself", "yourselves", "tell", "know", "much", "many", "tied",
	"get", "got", "use", "used", "using", "make", "does", "anything", "something",
}

// domainStopwords are legal English words that are never entity names here but sit
// within fuzzy distance of real names ("damage" vs "mage").
var domainStopwords = []string{
	"damage", "attack", "attacks", "spell", "spells", "cast", "casting", "level",
	"levels", "ability", "abilities", "combat", "bonus", "action", "actions",
	"reaction", "turn", "round", "rounds", "roll", "rolls", "check", "checks",
	"save", "saves", "saving", "throw", "throws", "character", "characters",
	"items", "item", "equipment", "inventory", "weapon", "weapons", "armor",
	"feature", "features", "trait", "traits", "skill", "skills", "proficiency",
	"proficiencies", "rule", "rules", "session", "sessions", "points", "hit",
	"class", "race", "stats", "modifier", "modifiers", "effect", "effects",
	"range", "target", "targets", "creature", "creatures", "happened", "last",
	"time", "work", "works", "have", "carrying", "backstory",
}

func defaultStopwords() map[string]struct{} {
	set := make(map[string]struct{}, len(genericStopwords)+len(domainStopwords))
	for _, w := range genericStopwords {
		set[w] = struct{}{}
	}
	for _, w := range domainStopwords {
		set[w] = struct{}{}
	}
	return set
}
