package util

import (
	"strings"
	"unicode"
)

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// 카카오톡 '전체보기'용 제로폭 문자를 채워 긴 메시지를 접는다.
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	message := strings.TrimSpace(instruction)

	var b strings.Builder
	b.Grow(len(text) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + len(message) + 1)
	b.WriteString(message)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String()
}

// 첫 줄을 '전체보기' 안내로 쓰고 나머지 본문을 접는다. 한 줄짜리는 그대로 둔다.
func FoldAfterFirstLine(text string) string {
	head, body, ok := strings.Cut(strings.TrimSpace(text), "\n")
	if !ok || strings.TrimSpace(body) == "" {
		return text
	}
	return ApplyKakaoSeeMorePadding(body, head)
}

// 멘션 토큰("@이름")에서 이름만 꺼낸다. 카카오 멘션은 뒤에 공백이나 제로폭 문자가 붙는다.
func TrimMention(token string) (string, bool) {
	token = strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\u200b'
	})
	if !strings.HasPrefix(token, "@") {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(token, "@"))
	return name, name != ""
}

// 이름 비교용 정규화 (공백, 대소문자 무시).
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(name, KakaoZeroWidthSpace, "")), ""))
}
