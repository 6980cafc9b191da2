package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tunevault/core/search"

	"github.com/gorilla/mux"
)

// queryParams 包装 url.Values 并记录第一个解析错误，handler 读取完所有参数后统一检查
type queryParams struct {
	values url.Values
	err    error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (q *queryParams) fail(name, want string) {
	if q.err == nil {
		q.err = badRequest("invalid " + name + ": expected " + want)
	}
}

func (q *queryParams) str(name string) *string {
	v := strings.TrimSpace(q.values.Get(name))
	if v == "" {
		return nil
	}
	return &v
}

func (q *queryParams) intPtr(name string) *int {
	s := q.str(name)
	if s == nil {
		return nil
	}
	n, err := strconv.Atoi(*s)
	if err != nil {
		q.fail(name, "an integer")
		return nil
	}
	return &n
}

func (q *queryParams) intOr(name string, def int) int {
	if n := q.intPtr(name); n != nil {
		return *n
	}
	return def
}

func (q *queryParams) floatPtr(name string) *float64 {
	s := q.str(name)
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		q.fail(name, "a number")
		return nil
	}
	return &f
}

func (q *queryParams) boolPtr(name string) *bool {
	s := q.str(name)
	if s == nil {
		return nil
	}
	b, err := strconv.ParseBool(*s)
	if err != nil {
		q.fail(name, "true or false")
		return nil
	}
	return &b
}

func (q *queryParams) numRange(prefix string) search.NumRange {
	return search.NumRange{From: q.floatPtr(prefix + "From"), To: q.floatPtr(prefix + "To")}
}

// list 同时支持重复参数和逗号分隔
func (q *queryParams) list(name string) []string {
	var out []string
	for _, raw := range q.values[name] {
		for _, part := range strings.Split(raw, ",") {
			if t := strings.TrimSpace(part); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// parseSearchRequest 解析并校验搜索参数
func parseSearchRequest(r *http.Request) (search.Request, error) {
	q := newQueryParams(r)
	req := search.Request{
		Query: q.values.Get("q"),

		Genre:       q.str("genre"),
		Key:         q.str("key"),
		Channels:    q.intPtr("channels"),
		Encoding:    q.str("encoding"),
		DiscNumber:  q.intPtr("discNumber"),
		TrackNumber: q.intPtr("trackNumber"),

		Artist:      q.str("artist"),
		Album:       q.str("album"),
		AlbumArtist: q.str("albumArtist"),
		Mood:        q.str("mood"),

		Year:       q.numRange("year"),
		Duration:   q.numRange("duration"),
		BPM:        q.numRange("bpm"),
		MinBitrate: q.intPtr("minBitrate"),

		HasLyrics:   q.boolPtr("hasLyrics"),
		HasCoverArt: q.boolPtr("hasCoverArt"),

		Composers: q.list("composers"),

		Sort:  search.SortRelevance,
		Order: search.OrderDesc,
		Page:  q.intOr("page", 1),
		Limit: q.intOr("limit", search.DefaultLimit),
	}
	if s := q.str("sort"); s != nil {
		req.Sort = *s
	}
	if o := q.str("order"); o != nil {
		req.Order = strings.ToLower(*o)
	}
	if q.err != nil {
		return search.Request{}, q.err
	}
	if err := req.Validate(); err != nil {
		return search.Request{}, err
	}
	return req, nil
}

// parsePaging 解析列表分页参数
func parsePaging(r *http.Request) (int, int, error) {
	q := newQueryParams(r)
	page := q.intOr("page", 1)
	limit := q.intOr("limit", search.DefaultLimit)
	if q.err != nil {
		return 0, 0, q.err
	}
	if page < 1 {
		return 0, 0, badRequest("page must be >= 1")
	}
	if limit < 1 || limit > search.MaxLimit {
		return 0, 0, badRequest("limit must be between 1 and 100")
	}
	return page, limit, nil
}

// pathID 解析路由中的 {id}
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid record id")
	}
	return id, nil
}
