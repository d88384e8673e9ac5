package git

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"
)

// CommitInfo represents information about a git commit.
type CommitInfo struct {
	SHA     string
	Author  string
	Time    time.Time
	Message string
}

// ShortSHA returns a short version of the SHA (up to 8 chars).
func (c CommitInfo) ShortSHA() string {
	return shortSHA(c.SHA)
}

const logFormat = "--format=%H%x09%an%x09%at%x09%s"

// Log returns up to n commits that touched path, newest first. A
// repository without commits yields no entries.
func (r *Repo) Log(ctx context.Context, path string, n int) ([]CommitInfo, error) {
	if !r.HasCommits(ctx) {
		return nil, nil
	}
	args := []string{"log", logFormat}
	if n > 0 {
		args = append(args, "-n", strconv.Itoa(n))
	}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

// CommitsSince returns commits between commitRef and HEAD that touched path.
func (r *Repo) CommitsSince(ctx context.Context, commitRef, path string) ([]CommitInfo, error) {
	if _, err := r.ValidateCommit(ctx, commitRef); err != nil {
		return nil, err
	}
	out, err := r.run(ctx, "log", logFormat, commitRef+"..HEAD", "--", path)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

// shortSHA returns a short version of a SHA (up to 8 chars).
func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// parseLog parses tab-separated git log output.
func parseLog(data []byte) []CommitInfo {
	var commits []CommitInfo
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		ci := CommitInfo{SHA: parts[0]}
		if len(parts) > 1 {
			ci.Author = parts[1]
		}
		if len(parts) > 2 {
			if sec, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
				ci.Time = time.Unix(sec, 0).UTC()
			}
		}
		if len(parts) > 3 {
			ci.Message = parts[3]
		}
		commits = append(commits, ci)
	}
	return commits
}
