package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/service"
	"github.com/d60-Lab/engagement/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// 并发随机点赞/取消，最后核对 likes_count 与 likes 行数
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	if err := model.AutoMigrate(db); err != nil {
		panic(err)
	}

	N := envInt("N", 10000)
	CONC := envInt("CONC", 8)
	CLIPS := envInt("CLIPS", 20)
	USERS := envInt("USERS", 200)

	tx := repository.NewTxRunner(db)
	clips := repository.NewClipRepository(tx)
	svc := service.NewMembershipService(repository.NewMembershipRepository(tx), clips, nil, service.SystemClock)
	ctx := context.Background()

	// seed: 一个作者，CLIPS 个视频
	users := repository.NewUserRepository(tx)
	owner := &model.User{ID: "bench-owner", Username: "bench-owner"}
	if _, err := users.Get(ctx, owner.ID); errors.Is(err, repository.ErrNotFound) {
		if err := users.Create(ctx, owner); err != nil {
			panic(err)
		}
	} else if err != nil {
		panic(err)
	}
	clipIDs := make([]string, CLIPS)
	for i := range clipIDs {
		clipIDs[i] = uuid.NewString()
		if err := clips.Create(ctx, &model.Clip{ID: clipIDs[i], OwnerID: owner.ID}); err != nil {
			panic(err)
		}
	}

	feed := make(chan int, N)
	for i := 0; i < N; i++ {
		feed <- i
	}
	close(feed)

	var (
		mu      sync.Mutex
		recs    = make([]time.Duration, 0, N)
		changed int
		failed  int
		wg      sync.WaitGroup
	)
	t0 := time.Now()
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for range feed {
				clip := clipIDs[rnd.Intn(len(clipIDs))]
				user := fmt.Sprintf("u%05d", rnd.Intn(USERS))
				intent := service.IntentAdd
				if rnd.Intn(2) == 0 {
					intent = service.IntentRemove
				}
				st := time.Now()
				ok, err := svc.Toggle(ctx, service.KindLike, clip, user, intent)
				d := time.Since(st)
				mu.Lock()
				recs = append(recs, d)
				if err != nil {
					failed++
				} else if ok {
					changed++
				}
				mu.Unlock()
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()
	total := time.Since(t0)

	pct := func(vs []time.Duration, p float64) time.Duration {
		if len(vs) == 0 {
			return 0
		}
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(math.Ceil(p*float64(len(xs)))) - 1
		if k < 0 {
			k = 0
		}
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}

	fmt.Printf("N=%d, CONC=%d, CLIPS=%d, USERS=%d\n", N, CONC, CLIPS, USERS)
	fmt.Printf("Toggle total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		total, total/time.Duration(N), pct(recs, 0.50), pct(recs, 0.95), pct(recs, 0.99))
	fmt.Printf("changed=%d noop=%d failed=%d\n", changed, N-changed-failed, failed)

	drift := 0
	for _, id := range clipIDs {
		var rows int64
		_ = db.Model(&model.Like{}).Where("clip_id = ?", id).Count(&rows).Error
		c := must(clips.Get(ctx, id))
		if c.LikesCount != rows {
			drift++
			fmt.Printf("DRIFT clip=%s likes_count=%d rows=%d\n", id, c.LikesCount, rows)
		}
	}
	if drift > 0 {
		os.Exit(1)
	}
	fmt.Println("likes_count matches like rows for every clip")
}
