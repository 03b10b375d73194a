package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terrazul-dev/tz/internal/config"
	"github.com/terrazul-dev/tz/internal/errs"
	"github.com/terrazul-dev/tz/internal/linker"
	"github.com/terrazul-dev/tz/internal/lockfile"
	"github.com/terrazul-dev/tz/internal/manifest"
	"github.com/terrazul-dev/tz/internal/registry"
	"github.com/terrazul-dev/tz/internal/resolver"
	"github.com/terrazul-dev/tz/internal/store"
)

// defaultConcurrency bounds parallel tarball downloads.
const defaultConcurrency = 4

// RegistryClient is the registry collaborator the installer consumes.
type RegistryClient interface {
	resolver.Registry
	TarballInfo(ctx context.Context, name, version string) (*registry.TarballInfo, error)
	DownloadTarball(ctx context.Context, url string) (io.ReadCloser, error)
}

// Installer coordinates resolution, storage, linking, and lockfile writes.
type Installer struct {
	cfg         config.Context
	registry    RegistryClient
	store       *store.Store
	resolver    *resolver.Resolver
	cliVersion  string
	concurrency int
	now         func() time.Time
}

// Option configures an Installer.
type Option func(*Installer)

// WithCLIVersion records the CLI version in lockfile metadata.
func WithCLIVersion(v string) Option {
	return func(i *Installer) { i.cliVersion = v }
}

// WithConcurrency bounds the download worker pool.
func WithConcurrency(n int) Option {
	return func(i *Installer) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithClock overrides the time source for lockfile metadata.
func WithClock(now func() time.Time) Option {
	return func(i *Installer) { i.now = now }
}

// New creates an Installer. The store root and cache directory come from
// the configuration context.
func New(cfg config.Context, reg RegistryClient, opts ...Option) *Installer {
	ins := &Installer{
		cfg:         cfg,
		registry:    reg,
		store:       store.New(cfg.StoreDir),
		resolver:    resolver.New(reg),
		cliVersion:  "dev",
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(ins)
	}
	return ins
}

// Request describes one install batch.
type Request struct {
	ProjectRoot string
	// Packages limits resolution to the given name → range pairs (the add
	// flow). When empty, the full manifest dependency map is used.
	Packages map[string]string
	// UpdateManifest rewrites the manifest dependency line of each
	// explicitly requested package to a caret range of its resolved
	// version.
	UpdateManifest bool
}

// Installed reports one successfully linked package.
type Installed struct {
	Name      string
	Version   string
	Integrity string
}

// Result is the outcome of a successful install batch.
type Result struct {
	Installed []Installed
	Warnings  []string
}

// download is the per-package carrier through the batch pipeline.
type download struct {
	name      string
	version   string
	url       string
	integrity string
	deps      map[string]string
	tmpPath   string
}

// Install runs one batch end to end. On error the lockfile and manifest
// are untouched; packages linked earlier in the same batch remain linked
// and the next run treats them as already satisfied.
func (ins *Installer) Install(ctx context.Context, req Request) (*Result, error) {
	m, err := manifest.Load(req.ProjectRoot)
	if err != nil {
		return nil, err
	}
	prior, err := lockfile.Read(req.ProjectRoot)
	if err != nil {
		return nil, err
	}

	requested := req.Packages
	if len(requested) == 0 {
		requested = m.Dependencies
	}
	if len(requested) == 0 {
		return &Result{}, nil
	}

	res, err := ins.resolver.Resolve(ctx, requested, m.Package.Name, resolver.Options{
		Locked: lockedVersions(prior),
	})
	if err != nil {
		return nil, err
	}

	pending, reused := ins.partition(res, prior)

	downloads, err := ins.downloadAll(ctx, pending)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, d := range downloads {
			os.Remove(d.tmpPath)
		}
	}()

	updates := make(map[string]lockfile.Package)
	var installed []Installed

	// Reused entries keep their lock data; just make sure the project
	// link still exists.
	for _, name := range sortedKeys(reused) {
		entry := reused[name]
		updates[name] = entry
		if !linker.Linked(req.ProjectRoot, name) {
			if err := linker.Link(req.ProjectRoot, name, ins.store.PackagePath(name, entry.Version)); err != nil {
				return nil, err
			}
		}
	}

	// Every download is verified; extraction and linking run strictly
	// after, in name order.
	for _, d := range downloads {
		if err := ins.materialize(req.ProjectRoot, d); err != nil {
			return nil, err
		}
		updates[d.name] = lockfile.Package{
			Version:      d.version,
			Resolved:     d.url,
			Integrity:    d.integrity,
			Dependencies: d.deps,
		}
		installed = append(installed, Installed{Name: d.name, Version: d.version, Integrity: d.integrity})
	}

	merged := lockfile.Merge(prior, updates)
	merged.Metadata = lockfile.Metadata{
		GeneratedAt: ins.now().UTC().Format(time.RFC3339),
		CLIVersion:  ins.cliVersion,
	}
	if err := lockfile.Write(merged, req.ProjectRoot); err != nil {
		return nil, err
	}

	if req.UpdateManifest {
		for name := range req.Packages {
			pkg, ok := res.Packages[name]
			if !ok {
				continue
			}
			if err := manifest.SetDependency(req.ProjectRoot, name, "^"+pkg.Version); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(installed, func(i, j int) bool { return installed[i].Name < installed[j].Name })
	return &Result{Installed: installed, Warnings: res.Warnings}, nil
}

// partition splits the resolution into packages that need download work
// and prior lockfile entries whose resolved state is already satisfied.
func (ins *Installer) partition(res *resolver.Resolution, prior *lockfile.Data) (map[string]resolver.ResolvedPackage, map[string]lockfile.Package) {
	pending := make(map[string]resolver.ResolvedPackage)
	reused := make(map[string]lockfile.Package)

	for name, pkg := range res.Packages {
		if prior != nil {
			if entry, ok := prior.Packages[name]; ok && entry.Version == pkg.Version && ins.store.PackageExtracted(name, pkg.Version) {
				// Same version, already in the store: nothing to fetch.
				reused[name] = entry
				continue
			}
		}
		pending[name] = pkg
	}
	return pending, reused
}

func sortedKeys(m map[string]lockfile.Package) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// downloadAll fetches and verifies every pending tarball under a bounded
// worker pool. Any failure aborts the batch before extraction starts.
func (ins *Installer) downloadAll(ctx context.Context, pending map[string]resolver.ResolvedPackage) ([]download, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(ins.cfg.CacheDir, 0755); err != nil {
		return nil, errs.Wrap(errs.StorageError, err, "creating cache directory")
	}

	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	downloads := make([]download, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ins.concurrency)

	for i, name := range names {
		g.Go(func() error {
			d, err := ins.fetchOne(gctx, name, pending[name])
			if err != nil {
				return err
			}
			downloads[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, d := range downloads {
			if d.tmpPath != "" {
				os.Remove(d.tmpPath)
			}
		}
		return nil, err
	}
	return downloads, nil
}

// fetchOne downloads one tarball to the cache and verifies its integrity
// before anything touches the store.
func (ins *Installer) fetchOne(ctx context.Context, name string, pkg resolver.ResolvedPackage) (download, error) {
	info, err := ins.registry.TarballInfo(ctx, name, pkg.Version)
	if err != nil {
		return download{}, err
	}

	body, err := ins.registry.DownloadTarball(ctx, info.URL)
	if err != nil {
		return download{}, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(ins.cfg.CacheDir, ".download-*")
	if err != nil {
		return download{}, errs.Wrap(errs.StorageError, err, "creating download temp file")
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return download{}, errs.Wrap(errs.NetworkError, err, "downloading %s@%s", name, pkg.Version)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return download{}, errs.Wrap(errs.StorageError, err, "closing download temp file")
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return download{}, errs.Wrap(errs.StorageError, err, "reading downloaded tarball")
	}

	integrity := lockfile.CreateIntegrityHash(data)
	if info.Integrity != "" && !lockfile.VerifyIntegrity(data, info.Integrity) {
		os.Remove(tmpPath)
		return download{}, errs.New(errs.IntegrityMismatch, "downloaded bytes for %s@%s do not match the registry integrity hash", name, pkg.Version).
			WithDetail("package", name).
			WithDetail("version", pkg.Version).
			WithDetail("expected", info.Integrity).
			WithDetail("actual", integrity)
	}

	return download{
		name:      name,
		version:   pkg.Version,
		url:       info.URL,
		integrity: integrity,
		deps:      pkg.Dependencies,
		tmpPath:   tmpPath,
	}, nil
}

// materialize promotes a verified tarball into the store, extracts it, and
// links it into the project.
func (ins *Installer) materialize(projectRoot string, d download) error {
	f, err := os.Open(d.tmpPath)
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "opening verified tarball for %s", d.name)
	}
	_, err = ins.store.StoreStream(f)
	f.Close()
	if err != nil {
		return err
	}

	if err := ins.store.ExtractTarball(d.tmpPath, d.name, d.version); err != nil {
		return fmt.Errorf("extracting %s@%s: %w", d.name, d.version, err)
	}

	if err := linker.Link(projectRoot, d.name, ins.store.PackagePath(d.name, d.version)); err != nil {
		return err
	}
	return nil
}

// lockedVersions extracts name → version pairs from a prior lockfile.
func lockedVersions(data *lockfile.Data) map[string]string {
	if data == nil {
		return nil
	}
	locked := make(map[string]string, len(data.Packages))
	for name, pkg := range data.Packages {
		locked[name] = pkg.Version
	}
	return locked
}
