package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"datahouse.com/internal/domain"
	"datahouse.com/pkg/orm"
	"datahouse.com/pkg/xerr"
	"gorm.io/gorm"
)

const DefaultRoute = "default"

// Route 一个 region+provider 对应一个物理库
type Route struct {
	Region   domain.Region
	Provider domain.Provider
}

func (r Route) Key() string { return fmt.Sprintf("%s_%s", r.Region, r.Provider) }

func (r Route) String() string { return r.Key() }

// Router 按 region_provider -> region -> default 的顺序查找连接
type Router struct {
	mu  sync.RWMutex
	dbs map[string]*gorm.DB
}

func NewRouter(dbs map[string]*gorm.DB) *Router {
	m := make(map[string]*gorm.DB, len(dbs))
	for k, v := range dbs {
		m[k] = v
	}
	return &Router{dbs: m}
}

// OpenRouter 按配置打开所有库，任何一个失败都关闭已打开的
func OpenRouter(cfgs map[string]orm.Config) (*Router, error) {
	r := &Router{dbs: make(map[string]*gorm.DB, len(cfgs))}
	for key, c := range cfgs {
		c := c
		db, err := orm.Open(&c)
		if err != nil {
			_ = r.Close()
			return nil, xerr.NewFatal(err, "open route "+key)
		}
		r.dbs[key] = db
	}
	return r, nil
}

func (r *Router) DB(route Route) (*gorm.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range []string{route.Key(), string(route.Region), DefaultRoute} {
		if db, ok := r.dbs[key]; ok {
			return db, nil
		}
	}
	return nil, xerr.Fatalf("no database configured for route %s", route)
}

func (r *Router) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.dbs))
	for k := range r.dbs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SQLDBs 给连接池指标采集用
func (r *Router) SQLDBs() map[string]*sql.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*sql.DB, len(r.dbs))
	for k, db := range r.dbs {
		if sqlDB, err := db.DB(); err == nil {
			out[k] = sqlDB
		}
	}
	return out
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for k, db := range r.dbs {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", k, err))
		}
	}
	r.dbs = map[string]*gorm.DB{}
	return errors.Join(errs...)
}
