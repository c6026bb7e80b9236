package providers

import "testing"

func TestQueryBuilderAddIfPresentSkipsEmpty(t *testing.T) {
	q := NewQueryBuilder().
		Add("apiKey", "k").
		AddIfPresent("q", "").
		AddIfPresent("page", 0).
		AddIfPresent("flag", false).
		AddIfPresent("ids", []string{}).
		AddIfPresent("m", map[string]string{}).
		AddIfPresent("nil", nil).
		AddIfPresent("category", "tech")

	if got := q.Encode(); got != "apiKey=k&category=tech" {
		t.Fatalf("unexpected encoding %q", got)
	}
	if q.Has("q") {
		t.Fatalf("empty keyword should be absent")
	}
}

func TestQueryBuilderOverwriteKeepsPosition(t *testing.T) {
	q := NewQueryBuilder().Add("a", 1).Add("b", 2).Add("a", 3)

	params := q.Params()
	if len(params) != 2 || params[0].Key != "a" || params[0].Value != 3 {
		t.Fatalf("unexpected params %#v", params)
	}
	if got := q.Encode(); got != "a=3&b=2" {
		t.Fatalf("unexpected encoding %q", got)
	}
}

func TestQueryBuilderAddWhenAndMerge(t *testing.T) {
	base := NewQueryBuilder().Add("page", 1).AddWhen(false, "skip", "x").AddWhen(true, "keep", "y")
	other := NewQueryBuilder().Add("page", 2).Add("q", "climate change")

	base.Merge(other).Merge(nil)

	if got := base.Encode(); got != "page=2&keep=y&q=climate+change" {
		t.Fatalf("unexpected encoding %q", got)
	}
	if base.Len() != 3 {
		t.Fatalf("expected 3 params, got %d", base.Len())
	}
}

func TestQueryBuilderEncodesValues(t *testing.T) {
	q := NewQueryBuilder().
		Add("show-fields", []string{"thumbnail", "bodyText"}).
		Add("exact", true).
		Add("size", int64(20))

	if got := q.Encode(); got != "show-fields=thumbnail%2CbodyText&exact=true&size=20" {
		t.Fatalf("unexpected encoding %q", got)
	}
}

func TestQueryBuilderAddIfPresentSkipsZeroString(t *testing.T) {
	q := NewQueryBuilder().
		AddIfPresent("section", "0").
		AddIfPresent("q", " 0").
		AddIfPresent("page", "00")

	if q.Has("section") {
		t.Fatalf(`"0" should be treated as absent`)
	}
	if got := q.Encode(); got != "q=+0&page=00" {
		t.Fatalf("unexpected encoding %q", got)
	}
}
