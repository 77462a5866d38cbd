package schema

import (
	"kwil-client/encoding"
	"kwil-client/models"
	"testing"
	"time"
)

const testDBID = "xabababababababababababababababababababababababababababab"

func TestCacheSetGet(t *testing.T) {
	c, err := New(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, ok := c.Get(testDBID); ok {
		t.Fatal("empty cache must miss")
	}

	dec, _ := encoding.DecimalType(10, 2)
	want := &models.Schema{
		Name: "blog",
		Tables: []*models.Table{{
			Name:    "posts",
			Columns: []*models.Column{{Name: "price", Type: &dec}},
		}},
	}
	if err := c.Set(testDBID, want); err != nil {
		t.Fatal(err)
	}

	get, ok := c.Get(testDBID)
	if !ok {
		t.Fatal("cache must hit after Set")
	}
	if get.Name != "blog" || !get.Tables[0].Columns[0].Type.Equals(dec) {
		t.Fatalf("Get=%+v", get)
	}

	c.Delete(testDBID)
	if _, ok := c.Get(testDBID); ok {
		t.Fatal("cache must miss after Delete")
	}
}

func TestCacheExpiry(t *testing.T) {
	c, err := New(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }

	if err := c.Set(testDBID, &models.Schema{Name: "blog"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(testDBID); !ok {
		t.Fatal("fresh entry must hit")
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get(testDBID); ok {
		t.Fatal("expired entry must miss")
	}
	if c.Len() != 0 {
		t.Fatalf("Get len=%d, want expired entry removed", c.Len())
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	c, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.ttl != DefaultTTL {
		t.Fatalf("Get=%v, want=%v", c.ttl, DefaultTTL)
	}
}
