package twitter

import "encoding/json"

// 操作ごとのフォールバックメッセージ
const (
	fallbackListPosts  = "Failed to fetch tweets"
	fallbackGetProfile = "Failed to fetch user info"
	fallbackCreatePost = "Failed to create tweet"
	fallbackDeletePost = "Failed to delete tweet"
)

// listRateLimitMessage は投稿一覧のスロットリング時メッセージ。%dは切り上げた待ち分数。
const listRateLimitMessage = "API制限に達しました。約%d分後に再度お試しください。"

// platformError はプラットフォームのエラーレスポンス（problem形式）。
type platformError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// normalizeErrorMessage はエラーレスポンスからクライアント向けメッセージを取り出す。
// detail、title、fallbackの順に優先する。JSONとして解釈できない場合はfallbackを返す。
func normalizeErrorMessage(body []byte, fallback string) string {
	var pe platformError
	if err := json.Unmarshal(body, &pe); err != nil {
		return fallback
	}
	if pe.Detail != "" {
		return pe.Detail
	}
	if pe.Title != "" {
		return pe.Title
	}
	return fallback
}
