// 由 sqlc 自动生成的代码。请勿编辑。
// 版本信息:
//   sqlc v1.30.0

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX 定义数据库事务接口，封装了数据库操作的核心方法
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// New 创建并返回一个新的 Queries 实例
// 参数 db: 实现了 DBTX 接口的数据库连接对象
// 返回值: 初始化后的 Queries 指针
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Prepare 预编译所有 SQL 查询语句并返回 Queries 实例
// 该方法会预先准备所有数据库查询语句，以提高后续查询的性能
// 参数 ctx: 上下文对象，用于控制请求的生命周期
// 参数 db: 实现了 DBTX 接口的数据库连接对象
// 返回值: 初始化后的 Queries 指针和可能的错误
func Prepare(ctx context.Context, db DBTX) (*Queries, error) {
	q := Queries{db: db}
	var err error
	if q.createChatStmt, err = db.PrepareContext(ctx, createChat); err != nil {
		return nil, fmt.Errorf("准备查询 CreateChat 时出错: %w", err)
	}
	if q.createMessageStmt, err = db.PrepareContext(ctx, createMessage); err != nil {
		return nil, fmt.Errorf("准备查询 CreateMessage 时出错: %w", err)
	}
	if q.deleteChatStmt, err = db.PrepareContext(ctx, deleteChat); err != nil {
		return nil, fmt.Errorf("准备查询 DeleteChat 时出错: %w", err)
	}
	if q.deleteChatMessagesStmt, err = db.PrepareContext(ctx, deleteChatMessages); err != nil {
		return nil, fmt.Errorf("准备查询 DeleteChatMessages 时出错: %w", err)
	}
	if q.deleteMessageStmt, err = db.PrepareContext(ctx, deleteMessage); err != nil {
		return nil, fmt.Errorf("准备查询 DeleteMessage 时出错: %w", err)
	}
	if q.getChatByIDStmt, err = db.PrepareContext(ctx, getChatByID); err != nil {
		return nil, fmt.Errorf("准备查询 GetChatByID 时出错: %w", err)
	}
	if q.getMessageStmt, err = db.PrepareContext(ctx, getMessage); err != nil {
		return nil, fmt.Errorf("准备查询 GetMessage 时出错: %w", err)
	}
	if q.listChatsStmt, err = db.PrepareContext(ctx, listChats); err != nil {
		return nil, fmt.Errorf("准备查询 ListChats 时出错: %w", err)
	}
	if q.listMessagesByChatStmt, err = db.PrepareContext(ctx, listMessagesByChat); err != nil {
		return nil, fmt.Errorf("准备查询 ListMessagesByChat 时出错: %w", err)
	}
	if q.touchChatStmt, err = db.PrepareContext(ctx, touchChat); err != nil {
		return nil, fmt.Errorf("准备查询 TouchChat 时出错: %w", err)
	}
	if q.updateChatStmt, err = db.PrepareContext(ctx, updateChat); err != nil {
		return nil, fmt.Errorf("准备查询 UpdateChat 时出错: %w", err)
	}
	if q.updateMessageStmt, err = db.PrepareContext(ctx, updateMessage); err != nil {
		return nil, fmt.Errorf("准备查询 UpdateMessage 时出错: %w", err)
	}
	return &q, nil
}

// Close 关闭所有预编译的 SQL 语句，释放相关资源
// 返回值: 关闭过程中遇到的第一个错误（如果有）
func (q *Queries) Close() error {
	var err error
	if q.createChatStmt != nil {
		if cerr := q.createChatStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 createChatStmt 时出错: %w", cerr)
		}
	}
	if q.createMessageStmt != nil {
		if cerr := q.createMessageStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 createMessageStmt 时出错: %w", cerr)
		}
	}
	if q.deleteChatStmt != nil {
		if cerr := q.deleteChatStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 deleteChatStmt 时出错: %w", cerr)
		}
	}
	if q.deleteChatMessagesStmt != nil {
		if cerr := q.deleteChatMessagesStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 deleteChatMessagesStmt 时出错: %w", cerr)
		}
	}
	if q.deleteMessageStmt != nil {
		if cerr := q.deleteMessageStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 deleteMessageStmt 时出错: %w", cerr)
		}
	}
	if q.getChatByIDStmt != nil {
		if cerr := q.getChatByIDStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 getChatByIDStmt 时出错: %w", cerr)
		}
	}
	if q.getMessageStmt != nil {
		if cerr := q.getMessageStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 getMessageStmt 时出错: %w", cerr)
		}
	}
	if q.listChatsStmt != nil {
		if cerr := q.listChatsStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 listChatsStmt 时出错: %w", cerr)
		}
	}
	if q.listMessagesByChatStmt != nil {
		if cerr := q.listMessagesByChatStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 listMessagesByChatStmt 时出错: %w", cerr)
		}
	}
	if q.touchChatStmt != nil {
		if cerr := q.touchChatStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 touchChatStmt 时出错: %w", cerr)
		}
	}
	if q.updateChatStmt != nil {
		if cerr := q.updateChatStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 updateChatStmt 时出错: %w", cerr)
		}
	}
	if q.updateMessageStmt != nil {
		if cerr := q.updateMessageStmt.Close(); cerr != nil {
			err = fmt.Errorf("关闭 updateMessageStmt 时出错: %w", cerr)
		}
	}
	return err
}

// exec 执行 SQL 查询语句，根据是否在事务中使用预编译语句或直接执行
// 参数 ctx: 上下文对象
// 参数 stmt: 预编译的 SQL 语句（可能为 nil）
// 参数 query: SQL 查询字符串
// 参数 args: 查询参数
// 返回值: 执行结果和可能的错误
func (q *Queries) exec(ctx context.Context, stmt *sql.Stmt, query string, args ...interface{}) (sql.Result, error) {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	case stmt != nil:
		return stmt.ExecContext(ctx, args...)
	default:
		return q.db.ExecContext(ctx, query, args...)
	}
}

// query 执行 SQL 查询并返回多行结果，根据是否在事务中使用预编译语句或直接执行
// 参数 ctx: 上下文对象
// 参数 stmt: 预编译的 SQL 语句（可能为 nil）
// 参数 query: SQL 查询字符串
// 参数 args: 查询参数
// 返回值: 查询结果集和可能的错误
func (q *Queries) query(ctx context.Context, stmt *sql.Stmt, query string, args ...interface{}) (*sql.Rows, error) {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).QueryContext(ctx, args...)
	case stmt != nil:
		return stmt.QueryContext(ctx, args...)
	default:
		return q.db.QueryContext(ctx, query, args...)
	}
}

// queryRow 执行 SQL 查询并返回单行结果，根据是否在事务中使用预编译语句或直接执行
// 参数 ctx: 上下文对象
// 参数 stmt: 预编译的 SQL 语句（可能为 nil）
// 参数 query: SQL 查询字符串
// 参数 args: 查询参数
// 返回值: 单行查询结果
func (q *Queries) queryRow(ctx context.Context, stmt *sql.Stmt, query string, args ...interface{}) *sql.Row {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).QueryRowContext(ctx, args...)
	case stmt != nil:
		return stmt.QueryRowContext(ctx, args...)
	default:
		return q.db.QueryRowContext(ctx, query, args...)
	}
}

// Queries 结构体封装了所有数据库查询操作
// 包含数据库连接、事务对象以及所有预编译的 SQL 语句
type Queries struct {
	db                     DBTX      // 数据库连接对象，实现了 DBTX 接口
	tx                     *sql.Tx   // 数据库事务对象（可选）
	createChatStmt         *sql.Stmt // 创建聊天的预编译语句
	createMessageStmt      *sql.Stmt // 创建消息的预编译语句
	deleteChatStmt         *sql.Stmt // 删除聊天的预编译语句
	deleteChatMessagesStmt *sql.Stmt // 删除聊天消息的预编译语句
	deleteMessageStmt      *sql.Stmt // 删除消息的预编译语句
	getChatByIDStmt        *sql.Stmt // 根据ID获取聊天的预编译语句
	getMessageStmt         *sql.Stmt // 获取消息的预编译语句
	listChatsStmt          *sql.Stmt // 列出聊天的预编译语句
	listMessagesByChatStmt *sql.Stmt // 按聊天列出消息的预编译语句
	touchChatStmt          *sql.Stmt // 刷新聊天更新时间的预编译语句
	updateChatStmt         *sql.Stmt // 更新聊天的预编译语句
	updateMessageStmt      *sql.Stmt // 更新消息的预编译语句
}

// WithTx 创建并返回一个与指定事务关联的新的 Queries 实例
// 该方法允许在事务上下文中执行所有数据库操作
// 参数 tx: 数据库事务对象
// 返回值: 与事务关联的新的 Queries 实例
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db:                     tx,
		tx:                     tx,
		createChatStmt:         q.createChatStmt,
		createMessageStmt:      q.createMessageStmt,
		deleteChatStmt:         q.deleteChatStmt,
		deleteChatMessagesStmt: q.deleteChatMessagesStmt,
		deleteMessageStmt:      q.deleteMessageStmt,
		getChatByIDStmt:        q.getChatByIDStmt,
		getMessageStmt:         q.getMessageStmt,
		listChatsStmt:          q.listChatsStmt,
		listMessagesByChatStmt: q.listMessagesByChatStmt,
		touchChatStmt:          q.touchChatStmt,
		updateChatStmt:         q.updateChatStmt,
		updateMessageStmt:      q.updateMessageStmt,
	}
}
