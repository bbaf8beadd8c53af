package matching

// NameSimilarity 计算两个人名的相似度,范围[0,1]
// 单字母缩写(中间名首字母)在仍有完整词时忽略,
// 因此 "Jane A. Smith" 与 "Jane Smith" 视为相同
func NameSimilarity(a, b string) float64 {
	return jaccard(nameTokens(a), nameTokens(b))
}

// TitleSimilarity 计算两个标题的相似度,范围[0,1]
func TitleSimilarity(a, b string) float64 {
	return jaccard(tokenSet(Tokens(a)), tokenSet(Tokens(b)))
}

func nameTokens(name string) map[string]struct{} {
	tokens := Tokens(name)
	full := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) > 1 {
			full = append(full, tok)
		}
	}
	if len(full) == 0 {
		return tokenSet(tokens)
	}
	return tokenSet(full)
}

// jaccard |A∩B| / |A∪B|,两个空集返回0
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Candidate 待排序的候选项
type Candidate struct {
	Name string
	Ref  string // 候选项对应的链接或ID
}

// BestMatch 在候选列表中选出与query最相似且不低于threshold的一项
// 分数相同时取最靠前的候选。没有候选达标时ok为false
func BestMatch(query string, candidates []Candidate, threshold float64) (best Candidate, score float64, ok bool) {
	bestIdx := -1
	for i, c := range candidates {
		s := NameSimilarity(query, c.Name)
		if s < threshold {
			continue
		}
		if bestIdx < 0 || s > score {
			bestIdx, score = i, s
		}
	}
	if bestIdx < 0 {
		return Candidate{}, 0, false
	}
	return candidates[bestIdx], score, true
}
