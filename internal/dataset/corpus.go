package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/face-auth/internal/calibration"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/imageutil"
)

// LoadStats describes how a dataset directory was turned into a corpus.
type LoadStats struct {
	Persons      int      // persons with at least one embedding
	Images       int      // images embedded successfully
	FailedImages []string // unreadable images and images without a face
}

// LoadCorpus embeds the first detected face of every image under root/<person>/.
// Images that cannot be decoded or show no face are counted as failed, and
// persons left without embeddings are dropped. An unavailable embedding
// service aborts the load. progress, when non-nil, is called once per image.
func LoadCorpus(ctx context.Context, root string, detector embedder.FaceDetector, concurrency int, progress func()) (calibration.Corpus, *LoadStats, error) {
	persons, err := ListPersons([]string{root})
	if err != nil {
		return nil, nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		person, index int
		path          string
	}

	// slots keep file order so a seed reproduces the same pairs
	slots := make([][]facematch.Embedding, len(persons))
	var jobs []job
	for pi, p := range persons {
		slots[pi] = make([]facematch.Embedding, len(p.Images))
		for ii, img := range p.Images {
			jobs = append(jobs, job{person: pi, index: ii, path: img})
		}
	}

	var (
		mu       sync.Mutex
		failed   []string
		fatalErr error
	)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if progress != nil {
				defer progress()
			}

			if ctx.Err() != nil {
				return
			}

			emb, err := embedFile(ctx, detector, j.path)
			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				slots[j.person][j.index] = emb
			case embedder.IsUnavailable(err) || errors.Is(err, context.Canceled):
				if fatalErr == nil {
					fatalErr = err
					cancel()
				}
			default:
				log.Debug().Err(err).Str("path", j.path).Msg("Skipping image")
				failed = append(failed, j.path)
			}
		}(j)
	}

	wg.Wait()

	if fatalErr == nil {
		fatalErr = ctx.Err()
	}
	if fatalErr != nil {
		return nil, nil, fmt.Errorf("embedding %s: %w", root, fatalErr)
	}

	corpus := make(calibration.Corpus, len(persons))
	stats := &LoadStats{FailedImages: failed}
	for pi, p := range persons {
		var embs []facematch.Embedding
		for _, e := range slots[pi] {
			if e != nil {
				embs = append(embs, e)
			}
		}
		if len(embs) == 0 {
			continue
		}
		corpus[p.Name] = embs
		stats.Persons++
		stats.Images += len(embs)
	}

	return corpus, stats, nil
}

func embedFile(ctx context.Context, detector embedder.FaceDetector, path string) (facematch.Embedding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	prepared, err := imageutil.Prepare(data)
	if err != nil {
		return nil, err
	}

	faces, err := detector.DetectFaces(ctx, prepared.JPEG)
	if err != nil {
		return nil, err
	}

	face, err := embedder.First(faces)
	if err != nil {
		return nil, err
	}
	return facematch.Embedding(face.Embedding), nil
}
