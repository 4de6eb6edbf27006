package core

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	DefaultAlpha   = 0.05
	DefaultDivisor = 4
)

// Params 嵌入/提取参数
type Params struct {
	Alpha     float64 // 水印强度，必须 > 0，通常 <= 0.1
	Divisor   int     // 块嵌入时水印为载体的 1/Divisor
	BlockRows int     // 块读取时覆盖默认块大小，0 表示使用默认
	BlockCols int
}

func DefaultParams() Params {
	return Params{Alpha: DefaultAlpha, Divisor: DefaultDivisor}
}

// EmbedVariant 嵌入算法
type EmbedVariant int

const (
	EmbedBlock     EmbedVariant = iota + 1 // DCT 左上角块叠加
	EmbedReference                         // 块叠加 + 空间域 SVD，记录原始奇异值
	EmbedHybrid                            // DCT + SVD
)

var embedNames = map[EmbedVariant]string{
	EmbedBlock:     "block",
	EmbedReference: "reference",
	EmbedHybrid:    "hybrid",
}

func (v EmbedVariant) String() string {
	if name, ok := embedNames[v]; ok {
		return name
	}
	return fmt.Sprintf("EmbedVariant(%d)", int(v))
}

// ParseEmbedVariant 解析 block / reference / hybrid
func ParseEmbedVariant(s string) (EmbedVariant, error) {
	for v, name := range embedNames {
		if strings.EqualFold(s, name) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown embed variant %q (want block, reference or hybrid)", s)
}

// Pair 与该嵌入算法配套的提取算法
func (v EmbedVariant) Pair() ExtractVariant {
	switch v {
	case EmbedReference:
		return ExtractReference
	case EmbedHybrid:
		return ExtractCover
	default:
		return ExtractBlock
	}
}

// ExtractVariant 提取算法
type ExtractVariant int

const (
	ExtractBlock     ExtractVariant = iota + 1 // 盲提取：读取 DCT 低频块
	ExtractReference                           // 盲提取：对比 Session 中的原始奇异值
	ExtractCover                               // 非盲提取：对比原始载体
)

var extractNames = map[ExtractVariant]string{
	ExtractBlock:     "block",
	ExtractReference: "reference",
	ExtractCover:     "cover",
}

func (v ExtractVariant) String() string {
	if name, ok := extractNames[v]; ok {
		return name
	}
	return fmt.Sprintf("ExtractVariant(%d)", int(v))
}

// ParseExtractVariant 解析 block / reference / cover
func ParseExtractVariant(s string) (ExtractVariant, error) {
	for v, name := range extractNames {
		if strings.EqualFold(s, name) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown extract variant %q (want block, reference or cover)", s)
}

// Engine 按算法类型构造 Embedder / Extractor
type Engine struct {
	Params Params
}

func NewEngine(p Params) *Engine {
	return &Engine{Params: p}
}

// Embedder EmbedReference 需要 session
func (e *Engine) Embedder(v EmbedVariant, session *Session) (Embedder, error) {
	switch v {
	case EmbedBlock:
		return &BlockAdditive{Alpha: e.Params.Alpha, Divisor: e.Params.Divisor}, nil
	case EmbedReference:
		if session == nil {
			return nil, errors.New("embed.reference: a session is required to record the reference")
		}
		return &BlockAdditive{Alpha: e.Params.Alpha, Divisor: e.Params.Divisor, Session: session}, nil
	case EmbedHybrid:
		return &Hybrid{Alpha: e.Params.Alpha}, nil
	}
	return nil, fmt.Errorf("unsupported embed variant %s", v)
}

// Extractor ExtractReference 需要 session，ExtractCover 需要 original
func (e *Engine) Extractor(v ExtractVariant, session *Session, original mat.Matrix) (Extractor, error) {
	switch v {
	case ExtractBlock:
		return &BlockRead{Divisor: e.Params.Divisor, BlockRows: e.Params.BlockRows, BlockCols: e.Params.BlockCols}, nil
	case ExtractReference:
		return &ReferenceDiff{Alpha: e.Params.Alpha, Session: session}, nil
	case ExtractCover:
		if original == nil {
			return nil, shapeError("extract.cover", "original cover is required")
		}
		return &CoverDiff{Alpha: e.Params.Alpha, Original: original}, nil
	}
	return nil, fmt.Errorf("unsupported extract variant %s", v)
}
