package b3cverify

import (
	"errors"
	"sync"
	"time"

	"github.com/everFinance/b3cverify/cache"
	"github.com/everFinance/b3cverify/common"
	"github.com/everFinance/b3cverify/schema"
	"github.com/everFinance/b3cverify/sdk"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"github.com/panjf2000/ants/v2"
)

var log = NewLog("b3cverify")

const (
	outcomeChanSize  = 1024
	resumePoolSize   = 20
	balanceCacheLife = 24 * time.Hour
)

type B3cVerify struct {
	config    schema.Config
	engine    *gin.Engine
	scheduler *gocron.Scheduler
	clock     clockwork.Clock

	cli       *sdk.Client
	ctrl      *Controller
	refresher *Refresher
	views     *ViewStore
	store     *Store
	wdb       *Wdb
	balCache  *cache.Cache
	kWriter   *KWriter // nil unless kafka is enabled

	outcomeChan chan schema.Outcome
	done        chan struct{}
	closeOnce   sync.Once
}

func New(cfg schema.Config) *B3cVerify {
	store, err := NewBoltStore(cfg.BoltDir)
	if err != nil {
		panic(err)
	}

	var wdb *Wdb
	if cfg.UseSqlite {
		wdb = NewSqliteDb(cfg.SqliteDir)
	} else {
		wdb = NewMysqlDb(cfg.Mysql)
	}
	if err = wdb.Migrate(); err != nil {
		panic(err)
	}

	balCache, err := cache.NewLocalCache(balanceCacheLife)
	if err != nil {
		panic(err)
	}

	var kWriter *KWriter
	if cfg.Kafka.Start {
		kWriter, err = NewKWriter(OutcomeTopic, cfg.Kafka.Uri)
		if err != nil {
			panic(err)
		}
	}

	policy := cfg.Policy()
	clock := clockwork.NewRealClock()
	cli := sdk.NewWithTimeout(cfg.ApiUrl, cfg.InitData, policy.RequestTimeout)
	views := NewViewStore()

	refresher := NewRefresher(cfg.Account, clock, cli, views, balCache.Cache)
	refresher.SetTxLimit(cfg.TxPageLimit)

	ctrl := NewController(policy, clock, cli, views)
	ctrl.SetStore(store)
	ctrl.SetRefresher(refresher)

	s := &B3cVerify{
		config:      cfg,
		engine:      gin.Default(),
		scheduler:   gocron.NewScheduler(time.UTC),
		clock:       clock,
		cli:         cli,
		ctrl:        ctrl,
		refresher:   refresher,
		views:       views,
		store:       store,
		wdb:         wdb,
		balCache:    balCache,
		kWriter:     kWriter,
		outcomeChan: make(chan schema.Outcome, outcomeChanSize),
		done:        make(chan struct{}),
	}
	ctrl.OnOutcome(s.pushOutcome)
	return s
}

func (s *B3cVerify) Run() {
	common.NewMetricServer(s.config.MetricPort)
	go s.runOutcomes()
	s.resumePending()
	s.runJobs()
	go s.runAPI(s.config.Port)
}

func (s *B3cVerify) Close() {
	s.closeOnce.Do(func() {
		s.scheduler.Stop()
		close(s.done)
		if s.kWriter != nil {
			s.kWriter.Close()
		}
		if err := s.store.Close(); err != nil {
			log.Error("s.store.Close()", "err", err)
		}
		s.wdb.Close()
	})
}

// pushOutcome runs under the controller lock, so it never blocks.
func (s *B3cVerify) pushOutcome(o schema.Outcome) {
	select {
	case s.outcomeChan <- o:
	default:
		log.Warn("outcome channel full, drop outcome", "paymentId", o.PaymentId, "result", o.Result)
	}
}

func (s *B3cVerify) runOutcomes() {
	for {
		select {
		case o := <-s.outcomeChan:
			s.processOutcome(o)
		case <-s.done:
			return
		}
	}
}

func (s *B3cVerify) processOutcome(o schema.Outcome) {
	if err := s.wdb.InsertOutcome(o); err != nil {
		log.Error("s.wdb.InsertOutcome(o)", "err", err, "paymentId", o.PaymentId)
	}
	if s.kWriter == nil {
		return
	}
	body, err := kafkaOutcome(o)
	if err != nil {
		log.Error("kafkaOutcome(o)", "err", err, "paymentId", o.PaymentId)
		return
	}
	if err = s.kWriter.Write(o.PaymentId, body); err != nil {
		log.Error("s.kWriter.Write", "err", err, "paymentId", o.PaymentId)
	}
}

func (s *B3cVerify) resumePending() {
	pendings, err := s.store.LoadAllPending()
	if err != nil {
		log.Error("s.store.LoadAllPending()", "err", err)
		return
	}
	if len(pendings) == 0 {
		return
	}

	log.Info("resume pending payments", "number", len(pendings))
	var wg sync.WaitGroup
	p, _ := ants.NewPoolWithFunc(resumePoolSize, func(i interface{}) {
		defer wg.Done()
		pd := i.(schema.Pending)
		err := s.ctrl.Resume(pd)
		if err != nil && !errors.Is(err, schema.ErrPaymentExpired) && !errors.Is(err, schema.ErrVerifyLimit) {
			log.Error("s.ctrl.Resume(pd)", "err", err, "paymentId", pd.PaymentId)
		}
	})
	defer p.Release()

	for _, pd := range pendings {
		wg.Add(1)
		_ = p.Invoke(pd)
	}
	wg.Wait()
}
