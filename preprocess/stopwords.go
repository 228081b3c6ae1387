package preprocess

var stopWords = toSet([]string{
	// Portuguese
	"a", "o", "e", "é", "de", "do", "da", "em", "um", "uma", "para", "com", "não", "na", "no", "se",
	"que", "como", "mais", "por", "mas", "dos", "das", "te", "me", "você", "ele", "ela", "seu", "sua",
	"isso", "essa", "este", "esta", "foi", "ser", "ter", "bem", "já", "só", "até", "muito", "quando",
	"onde", "então", "assim", "vai", "vou", "pode", "faz", "fica", "está", "estou", "são", "tem", "teu",
	"meu", "nos", "nós", "eles", "elas",

	// English
	"the", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by", "is", "are",
	"was", "were", "be", "been", "being", "have", "has", "had", "does", "did", "will", "would",
	"could", "should", "may", "might", "must", "can", "cannot", "i", "you", "he", "she", "it", "we",
	"they", "him", "her", "us", "them", "my", "your", "his", "its", "our", "their", "this", "that",
	"these", "those", "what", "where", "when", "why", "how", "all", "some", "any", "not", "only",
	"just", "very", "so", "too", "now", "then", "here", "there", "up", "down", "out", "off", "over",
	"under", "again", "once", "more", "most", "other", "another", "such", "like", "than", "also",
	"even", "well", "still", "back", "way", "get", "go", "come", "know", "see", "look", "want",
	"take", "give", "say", "tell", "think", "feel", "make", "let", "put", "keep", "find", "turn",
	"ask", "try", "need", "work", "call", "use", "help", "start", "show", "hear", "play", "run",
	"move", "live", "believe", "hold", "bring", "happen", "write", "sit", "stand", "lose", "pay",
	"meet", "include", "continue", "set", "learn", "change", "lead", "understand", "watch",
	"follow", "stop", "create", "speak", "read", "spend", "grow", "open", "walk", "win", "teach",
	"offer", "remember", "consider", "appear", "buy", "serve", "die", "send", "build", "stay",
	"fall", "cut", "reach", "kill", "remain",
})

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether word belongs to the bilingual stop-word set.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
