// Command seed populates the database with demo forum data.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"bitboard/internal/bootstrap"
	"bitboard/internal/config"
	"bitboard/internal/seed"
)

func main() {
	def := seed.DefaultOptions()
	numUsers := flag.Int("users", def.NumUsers, "Number of users to create")
	numThreads := flag.Int("threads", def.NumThreads, "Number of threads to create")
	postsPerThread := flag.Int("posts", def.PostsPerThread, "Replies per thread")
	commentsPerPost := flag.Int("comments", def.CommentsPerPost, "Comments per post")
	maxDays := flag.Int("days", def.MaxDays, "Spread content over this many past days")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible data")
	fast := flag.Bool("fast", false, "Skip password hashing; seeded users cannot sign in")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d threads, %d posts/thread, clean=%v", *numUsers, *numThreads, *postsPerThread, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	res, err := seed.Seed(ctx, rt.DB, seed.Options{
		NumUsers:        *numUsers,
		NumThreads:      *numThreads,
		PostsPerThread:  *postsPerThread,
		CommentsPerPost: *commentsPerPost,
		MaxDays:         *maxDays,
		RandSeed:        *randSeed,
		SkipBcrypt:      *fast,
		ShouldClean:     *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	// Cleaning drops every user, including the dev root admin.
	if err := bootstrap.EnsureRootAdmin(ctx, cfg, rt.DB); err != nil {
		log.Fatalf("Root admin setup failed: %v", err)
	}

	log.Printf("Done: %d users, %d threads, %d posts, %d comments, %d reactions, %d follows",
		res.Users, res.Threads, res.Posts, res.Comments, res.Reactions, res.Follows)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
