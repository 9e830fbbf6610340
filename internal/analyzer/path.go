package analyzer

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{[^}]*\}`)

// CleanPath 去掉 {param} 占位符、末尾斜杠并转小写
func CleanPath(path string) string {
	cleaned := placeholderPattern.ReplaceAllString(path, "")
	cleaned = strings.TrimRight(cleaned, "/")
	return strings.ToLower(cleaned)
}

// PathSimilarity 路径结构相似度：逐段比较，匹配段数 / 较长路径段数
func PathSimilarity(pathA, pathB string) float64 {
	segsA := splitPath(pathA)
	segsB := splitPath(pathB)

	if len(segsA) == 0 && len(segsB) == 0 {
		return 1.0
	}
	if len(segsA) == 0 || len(segsB) == 0 {
		return 0.0
	}

	shorter, longer := len(segsA), len(segsB)
	if shorter > longer {
		shorter, longer = longer, shorter
	}

	matches := 0
	for i := 0; i < shorter; i++ {
		if segmentsMatch(segsA[i], segsB[i]) {
			matches++
		}
	}
	return float64(matches) / float64(longer)
}

func splitPath(path string) []string {
	var segs []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// segmentsMatch 完全相同、同为占位符、或长度都大于 3 且互相包含
func segmentsMatch(a, b string) bool {
	if a == b {
		return true
	}
	if strings.HasPrefix(a, "{") && strings.HasPrefix(b, "{") {
		return true
	}
	if len(a) > 3 && len(b) > 3 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}
	return false
}
