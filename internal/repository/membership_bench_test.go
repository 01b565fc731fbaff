package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/d60-Lab/engagement/internal/testutil"
)

func BenchmarkLikeToggle(b *testing.B) {
	db := testutil.NewDB(b)
	testutil.SeedUsers(b, db, "owner")
	for i := 0; i < 100; i++ {
		testutil.SeedClip(b, db, fmt.Sprintf("c%03d", i), "owner")
	}
	repo := NewMembershipRepository(NewTxRunner(db))
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clip := fmt.Sprintf("c%03d", rnd.Intn(100))
		user := fmt.Sprintf("u%04d", rnd.Intn(1000))
		if rnd.Intn(2) == 0 {
			_, _ = repo.Add(ctx, Likes, clip, user, time.Now())
		} else {
			_, _ = repo.Remove(ctx, Likes, clip, user)
		}
	}
}

func BenchmarkIsLiked(b *testing.B) {
	db := testutil.NewDB(b)
	testutil.SeedUsers(b, db, "owner")
	testutil.SeedClip(b, db, "c1", "owner")
	repo := NewMembershipRepository(NewTxRunner(db))
	ctx := context.Background()
	for i := 0; i < 5000; i++ {
		_, _ = repo.Add(ctx, Likes, "c1", fmt.Sprintf("u%d", i), time.Now())
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = repo.Exists(ctx, Likes, "c1", fmt.Sprintf("u%d", i%10000))
	}
}
