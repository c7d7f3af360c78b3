package bam

import (
	"strings"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"github.com/pkg/errors"
)

// ServiceResolver 将主机名/服务名解析为 ID。
type ServiceResolver interface {
	ResolveService(host, service string) (hostID, serviceID uint32, ok bool)
}

// ParseBoolExpression 解析花括号语法的布尔表达式：
//
//	{Host Service} {IS|NOT} {OK|WARNING|CRITICAL|UNKNOWN}
//
// 项之间用 {AND} {OR} {XOR} 连接，{NOT} 作前缀，可用括号分组。
// 同一层的运算从左到右结合，没有优先级。
func ParseBoolExpression(text string, resolver ServiceResolver) (BoolValue, []*BoolService, error) {
	p := &boolParser{text: text, resolver: resolver}
	root, err := p.parseExpression()
	if err == nil && p.peek() != 0 {
		err = errors.Errorf("位置 %d 存在多余内容", p.pos)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "解析布尔表达式 '%s' 失败", text)
	}
	return root, p.services, nil
}

type boolParser struct {
	text     string
	pos      int
	resolver ServiceResolver
	services []*BoolService
}

func (p *boolParser) skipWS() {
	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

// peek 跳过空白后返回下一个字符，结束时返回 0。
func (p *boolParser) peek() byte {
	p.skipWS()
	if p.pos >= len(p.text) {
		return 0
	}
	return p.text[p.pos]
}

// braceToken 读取 {...} 中的内容。
func (p *boolParser) braceToken() (string, error) {
	if p.peek() != '{' {
		return "", errors.Errorf("位置 %d 期望 '{'", p.pos)
	}
	end := strings.IndexByte(p.text[p.pos+1:], '}')
	if end < 0 {
		return "", errors.Errorf("位置 %d 缺少 '}'", p.pos)
	}
	tok := strings.TrimSpace(p.text[p.pos+1 : p.pos+1+end])
	p.pos += end + 2
	return tok, nil
}

func (p *boolParser) peekBraceToken() string {
	save := p.pos
	tok, err := p.braceToken()
	p.pos = save
	if err != nil {
		return ""
	}
	return tok
}

func (p *boolParser) parseExpression() (BoolValue, error) {
	result, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok, err := p.parseOperator()
		if err != nil {
			return nil, err
		}
		if !ok {
			return result, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		result = NewBoolBinary(op, result, right)
	}
}

// parseOperator 没有运算符时返回 false，表示当前层结束。
func (p *boolParser) parseOperator() (BoolOperator, bool, error) {
	if p.peek() != '{' {
		return "", false, nil
	}
	tok, err := p.braceToken()
	if err != nil {
		return "", false, err
	}
	switch op := BoolOperator(strings.ToUpper(tok)); op {
	case BoolOpAnd, BoolOpOr, BoolOpXor:
		return op, true, nil
	}
	return "", false, errors.Errorf("非法运算符 '%s'", tok)
}

func (p *boolParser) parseTerm() (BoolValue, error) {
	switch p.peek() {
	case '{':
		switch strings.ToUpper(p.peekBraceToken()) {
		case "NOT":
			_, _ = p.braceToken()
			child, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			return NewBoolNot(child), nil
		case "TRUE":
			_, _ = p.braceToken()
			return NewBoolConstant(true), nil
		case "FALSE":
			_, _ = p.braceToken()
			return NewBoolConstant(false), nil
		}
		return p.parseServiceState()
	case '(':
		p.pos++
		exp, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, errors.New("缺少结束的 ')'")
		}
		p.pos++
		return exp, nil
	case 0:
		return nil, errors.New("表达式意外结束")
	}
	return nil, errors.Errorf("位置 %d 存在非法字符 '%c'", p.pos, p.text[p.pos])
}

// parseServiceState 解析 {HOST SERVICE} {IS|NOT} {STATE}。
func (p *boolParser) parseServiceState() (BoolValue, error) {
	hostService, err := p.braceToken()
	if err != nil {
		return nil, err
	}
	host, service, found := strings.Cut(hostService, " ")
	if !found || strings.TrimSpace(service) == "" {
		return nil, errors.Errorf("服务需要写成 {HOST SERVICE}，实际为 '%s'", hostService)
	}
	service = strings.TrimSpace(service)

	cond, err := p.braceToken()
	if err != nil {
		return nil, err
	}
	var expected bool
	switch strings.ToUpper(cond) {
	case "IS":
		expected = true
	case "NOT":
		expected = false
	default:
		return nil, errors.Errorf("非法条件 '%s'", cond)
	}

	stateTok, err := p.braceToken()
	if err != nil {
		return nil, err
	}
	state, ok := domain.ParseState(stateTok)
	if !ok {
		return nil, errors.Errorf("非法状态 '%s'", stateTok)
	}

	if p.resolver == nil {
		return nil, errors.New("未配置服务解析器")
	}
	hostID, serviceID, ok := p.resolver.ResolveService(host, service)
	if !ok || hostID == 0 || serviceID == 0 {
		return nil, errors.Errorf("找不到主机 '%s' 的服务 '%s'", host, service)
	}

	s := NewBoolService(hostID, serviceID, state, expected)
	p.services = append(p.services, s)
	return s, nil
}
