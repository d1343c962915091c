package pagination

import "testing"

func TestFromQuery_Defaults(t *testing.T) {
	p := FromQuery(nil)
	if p.Page != DefaultPage || p.PageSize != DefaultPageSize {
		t.Errorf("expected defaults, got %+v", p)
	}

	p = FromQuery(map[string]string{"page": "junk", "pageSize": "-5"})
	if p.Page != DefaultPage || p.PageSize != DefaultPageSize {
		t.Errorf("expected defaults for invalid input, got %+v", p)
	}
}

func TestFromQuery_ClampsPageSize(t *testing.T) {
	p := FromQuery(map[string]string{"page": "3", "pageSize": "5000"})
	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.PageSize != MaxPageSize {
		t.Errorf("expected pageSize clamped to %d, got %d", MaxPageSize, p.PageSize)
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, PageSize: 25}
	if p.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset())
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	p := Params{Page: 1, PageSize: 10}
	r := NewResponse(nil, 25, p)
	if !r.HasMore {
		t.Error("expected has_more for 25 total at page 1 of 10")
	}
	r = NewResponse(nil, 10, p)
	if r.HasMore {
		t.Error("did not expect has_more when the page covers the total")
	}
}
