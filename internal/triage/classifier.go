package triage

import "strings"

// 댓글에 이미지 요청 의도가 있는지 간단 키워드로 판별합니다.
var imageKeywords = []string{
	"사진", "이미지", "그림", "그려", "만들", "생성", "렌더",
	"image", "picture", "photo", "render", "generate",
}

// IsMediaRequest reports whether a comment text asks for generated media.
// Coarse case-insensitive substring matching, not NLP: false positives and
// negatives are accepted as-is. Empty text never matches.
func IsMediaRequest(text string) bool {
	if text == "" {
		return false
	}
	s := strings.ToLower(text)
	for _, k := range imageKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
