package model

import "encoding/json"

// PublicMetrics は投稿の公開エンゲージメント指標。
type PublicMetrics struct {
	RetweetCount    int `json:"retweet_count"`
	ReplyCount      int `json:"reply_count"`
	LikeCount       int `json:"like_count"`
	QuoteCount      int `json:"quote_count"`
	BookmarkCount   int `json:"bookmark_count,omitempty"`
	ImpressionCount int `json:"impression_count,omitempty"`
}

// Post はプラットフォーム上の投稿を表す。
// このシステムは投稿を永続化せず、プラットフォームの表現をそのまま中継する。
// デコード元のJSONを保持し、エンコード時はそれをそのまま返す。
type Post struct {
	ID                  string         `json:"id"`
	Text                string         `json:"text"`
	CreatedAt           string         `json:"created_at,omitempty"` // プラットフォームの表記のまま（ミリ秒を含む）
	AuthorID            string         `json:"author_id,omitempty"`
	EditHistoryTweetIDs []string       `json:"edit_history_tweet_ids,omitempty"`
	PublicMetrics       *PublicMetrics `json:"public_metrics,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON は型付きフィールドを埋めたうえで元のJSONを保持する。
func (p *Post) UnmarshalJSON(b []byte) error {
	type plain Post
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Post(v)
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON は保持している元のJSONを優先して返す。
func (p Post) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	type plain Post
	return json.Marshal(plain(p))
}

// Profile はプラットフォーム上のユーザープロフィール。
// Postと同様に、デコード元のJSONをそのまま中継する。
type Profile struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON は型付きフィールドを埋めたうえで元のJSONを保持する。
func (p *Profile) UnmarshalJSON(b []byte) error {
	type plain Profile
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Profile(v)
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON は保持している元のJSONを優先して返す。
func (p Profile) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	type plain Profile
	return json.Marshal(plain(p))
}

// PostListMeta は投稿一覧レスポンスのページング情報。
// 参照用の型で、レスポンスにはPostList.Metaの元JSONを使う。
type PostListMeta struct {
	ResultCount int    `json:"result_count"`
	NewestID    string `json:"newest_id,omitempty"`
	OldestID    string `json:"oldest_id,omitempty"`
	NextToken   string `json:"next_token,omitempty"`
}

// PostList は自分の投稿一覧のレスポンス。
// meta・includes・errorsはプラットフォームの内容を加工せずに保持する。
type PostList struct {
	Data     []Post          `json:"data"`
	Meta     json.RawMessage `json:"meta,omitempty"`
	Includes json.RawMessage `json:"includes,omitempty"`
	Errors   json.RawMessage `json:"errors,omitempty"`
}

// ParsedMeta はMetaをPostListMetaとして読み取る。Metaがない場合はゼロ値を返す。
func (l *PostList) ParsedMeta() (PostListMeta, error) {
	var m PostListMeta
	if len(l.Meta) == 0 {
		return m, nil
	}
	err := json.Unmarshal(l.Meta, &m)
	return m, err
}

// CreatedPost は投稿作成の結果。
type CreatedPost struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DeleteResult は投稿削除の結果。
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}
